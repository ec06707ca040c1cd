package reel

// Scope is a set of directories and content types over which an expected
// version is computed.
type Scope struct {
	Dirs  []string
	Types []ContentType
}

// PageScope covers one unit directory and every page content type.
func PageScope(dir string) Scope {
	return Scope{Dirs: []string{dir}, Types: PageContentTypes()}
}

// DocumentScope covers every unit directory of a document and every page
// content type. Its expected version dominates any PageScope inside it.
func (w Workspace) DocumentScope(docDir string) (Scope, error) {
	units, err := w.UnitDirs(docDir)
	if err != nil {
		return Scope{}, err
	}
	return Scope{Dirs: units, Types: PageContentTypes()}, nil
}

// ExpectedVersion is the maximum version number over every (dir, type)
// pair. A single type that runs ahead raises the expectation for all types.
func (l *Ledger) ExpectedVersion(dirs []string, types []ContentType) (int, error) {
	expected := 0
	for _, dir := range dirs {
		rec, err := readLedgerRecord(dir)
		if err != nil {
			return 0, err
		}
		for _, ct := range types {
			e := rec.lookup(ct)
			if e == nil {
				continue
			}
			if latest := e.latest(); latest != nil && latest.Version > expected {
				expected = latest.Version
			}
		}
	}
	return expected, nil
}

// ExpectedVersionIn is ExpectedVersion over a Scope.
func (l *Ledger) ExpectedVersionIn(s Scope) (int, error) {
	return l.ExpectedVersion(s.Dirs, s.Types)
}

// IsCurrent reports whether ct in dir has reached expected.
func (l *Ledger) IsCurrent(dir string, ct ContentType, expected int) (bool, error) {
	v, err := l.GetVersionNumber(dir, ct)
	if err != nil {
		return false, err
	}
	return v >= expected, nil
}
