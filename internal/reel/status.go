package reel

import "fmt"

// StageStatus is the version state of one content type in one directory.
type StageStatus struct {
	Dir         string
	ContentType ContentType
	Version     int
	Expected    int
	Current     bool
}

// UnitStatus groups the page stages of one unit directory.
type UnitStatus struct {
	Dir    string
	Stages []StageStatus
}

// DocumentReport is the document-scoped view used to decide what needs
// regeneration or fast-forwarding.
type DocumentReport struct {
	Document          string
	Expected          int
	SlideshowExpected int
	Units             []UnitStatus
	Slideshows        []StageStatus
}

// Lagging returns every page stage below the document expected version.
func (r *DocumentReport) Lagging() []StageStatus {
	var out []StageStatus
	for _, u := range r.Units {
		for _, st := range u.Stages {
			if !st.Current {
				out = append(out, st)
			}
		}
	}
	return out
}

// DocumentStatus computes the version state of every unit and slideshow of
// a document against the document-scoped expected version. The slideshow
// expectation is the larger of the slideshow versions and the page one.
func (s *Service) DocumentStatus(docDir string) (*DocumentReport, error) {
	scope, err := s.workspace.DocumentScope(docDir)
	if err != nil {
		return nil, err
	}
	expected, err := s.ledger.ExpectedVersionIn(scope)
	if err != nil {
		return nil, fmt.Errorf("computing expected version for %s: %w", docDir, err)
	}

	report := &DocumentReport{Document: docDir, Expected: expected}
	for _, dir := range scope.Dirs {
		unit := UnitStatus{Dir: dir}
		for _, ct := range scope.Types {
			st, err := s.stage(dir, ct, expected)
			if err != nil {
				return nil, err
			}
			unit.Stages = append(unit.Stages, st)
		}
		report.Units = append(report.Units, unit)
	}

	slides, err := s.ledger.ExpectedVersion([]string{docDir}, DocumentContentTypes())
	if err != nil {
		return nil, err
	}
	report.SlideshowExpected = max(slides, expected)
	for _, ct := range DocumentContentTypes() {
		st, err := s.stage(docDir, ct, report.SlideshowExpected)
		if err != nil {
			return nil, err
		}
		report.Slideshows = append(report.Slideshows, st)
	}
	return report, nil
}

// PageStatus computes the page-scoped state of one unit directory.
func (s *Service) PageStatus(dir string) (*UnitStatus, int, error) {
	expected, err := s.ledger.ExpectedVersionIn(PageScope(dir))
	if err != nil {
		return nil, 0, err
	}
	unit := &UnitStatus{Dir: dir}
	for _, ct := range PageContentTypes() {
		st, err := s.stage(dir, ct, expected)
		if err != nil {
			return nil, 0, err
		}
		unit.Stages = append(unit.Stages, st)
	}
	return unit, expected, nil
}

func (s *Service) stage(dir string, ct ContentType, expected int) (StageStatus, error) {
	v, err := s.ledger.GetVersionNumber(dir, ct)
	if err != nil {
		return StageStatus{}, err
	}
	return StageStatus{Dir: dir, ContentType: ct, Version: v, Expected: expected, Current: v >= expected}, nil
}

// FastForwardOutcome is the result of fast-forwarding one lagging stage.
type FastForwardOutcome struct {
	Dir         string
	ContentType ContentType
	Result      FastForwardResult
}

// FastForwardDocument brings every lagging page stage of a document up to
// the document expected version by copying, never by regeneration. Stages
// with no version at all have nothing to copy and are left out.
func (s *Service) FastForwardDocument(docDir string) ([]FastForwardOutcome, error) {
	report, err := s.DocumentStatus(docDir)
	if err != nil {
		return nil, err
	}
	var outcomes []FastForwardOutcome
	for _, st := range report.Lagging() {
		if st.Version == 0 {
			continue
		}
		res, err := s.ledger.FastForward(st.Dir, st.ContentType, report.Expected)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, FastForwardOutcome{Dir: st.Dir, ContentType: st.ContentType, Result: res})
	}
	return outcomes, nil
}
