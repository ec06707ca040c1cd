package reel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ContentType is a category of artifact with a fixed naming and encoding convention.
type ContentType string

const (
	EnText      ContentType = "en_text"
	HiText      ContentType = "hi_text"
	EnAudio     ContentType = "en_audio"
	HiAudio     ContentType = "hi_audio"
	Image       ContentType = "image"
	ImageVideo  ContentType = "image_video"
	EnVideo     ContentType = "en_video"
	HiVideo     ContentType = "hi_video"
	EnSlideshow ContentType = "en_slideshow"
	HiSlideshow ContentType = "hi_slideshow"
)

type contentSpec struct {
	baseName  string
	extension string
	binary    bool
	jobPrefix string
	source    ContentType
	document  bool
	pattern   *regexp.Regexp
}

var pageContentTypes = []ContentType{
	EnText,
	HiText,
	EnAudio,
	HiAudio,
	Image,
	ImageVideo,
	EnVideo,
	HiVideo,
}

var documentContentTypes = []ContentType{
	EnSlideshow,
	HiSlideshow,
}

var contentSpecs = func() map[ContentType]*contentSpec {
	specs := map[ContentType]*contentSpec{
		EnText:      {baseName: "final_text_en", extension: ".txt", jobPrefix: "final_text_en", source: EnText},
		HiText:      {baseName: "final_text_hi", extension: ".txt", jobPrefix: "final_text_hi", source: HiText},
		EnAudio:     {baseName: "final_text_en", extension: ".mp3", binary: true, jobPrefix: "voiceover_en", source: EnText},
		HiAudio:     {baseName: "final_text_hi", extension: ".mp3", binary: true, jobPrefix: "voiceover_hi", source: HiText},
		Image:       {baseName: "image_to_use", extension: ".png", binary: true, jobPrefix: "image_edit", source: Image},
		ImageVideo:  {baseName: "page_image_video", extension: ".mp4", binary: true, jobPrefix: "image_to_video", source: Image},
		EnVideo:     {baseName: "page_video_en", extension: ".mp4", binary: true, jobPrefix: "page_video_en", source: EnVideo},
		HiVideo:     {baseName: "page_video_hi", extension: ".mp4", binary: true, jobPrefix: "page_video_hi", source: HiVideo},
		EnSlideshow: {baseName: "english_slideshow", extension: ".mp4", binary: true, jobPrefix: "english_slideshow", source: EnSlideshow, document: true},
		HiSlideshow: {baseName: "hindi_slideshow", extension: ".mp4", binary: true, jobPrefix: "hindi_slideshow", source: HiSlideshow, document: true},
	}
	for _, s := range specs {
		s.pattern = regexp.MustCompile("^" + regexp.QuoteMeta(s.baseName) + `_v(\d+)` + regexp.QuoteMeta(s.extension) + "$")
	}
	return specs
}()

// PageContentTypes returns the content types versioned in every unit directory.
func PageContentTypes() []ContentType {
	return append([]ContentType(nil), pageContentTypes...)
}

// DocumentContentTypes returns the content types versioned in the document directory itself.
func DocumentContentTypes() []ContentType {
	return append([]ContentType(nil), documentContentTypes...)
}

// AllContentTypes returns page types followed by document types.
func AllContentTypes() []ContentType {
	all := make([]ContentType, 0, len(pageContentTypes)+len(documentContentTypes))
	all = append(all, pageContentTypes...)
	return append(all, documentContentTypes...)
}

// ParseContentType converts a user-supplied name into a ContentType.
func ParseContentType(value string) (ContentType, error) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := contentSpecs[ct]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownContentType, value)
	}
	return ct, nil
}

func (c ContentType) String() string { return string(c) }

// Valid reports whether c is one of the known content types.
func (c ContentType) Valid() bool {
	_, ok := contentSpecs[c]
	return ok
}

func (c ContentType) spec() *contentSpec {
	s, ok := contentSpecs[c]
	if !ok {
		panic(fmt.Sprintf("reel: unknown content type %q", string(c)))
	}
	return s
}

func (c ContentType) BaseName() string  { return c.spec().baseName }
func (c ContentType) Extension() string { return c.spec().extension }
func (c ContentType) IsBinary() bool    { return c.spec().binary }

// IsDocumentLevel reports whether c lives in the document directory rather than a unit directory.
func (c ContentType) IsDocumentLevel() bool { return c.spec().document }

// JobPrefix is the filename prefix used for queue jobs targeting c.
func (c ContentType) JobPrefix() string { return c.spec().jobPrefix }

// SourceType is the content type whose latest version feeds generation of c.
func (c ContentType) SourceType() ContentType { return c.spec().source }

// Filename returns the versioned filename, e.g. final_text_en_v3.txt.
func (c ContentType) Filename(version int) string {
	s := c.spec()
	return s.baseName + "_v" + strconv.Itoa(version) + s.extension
}

// CanonicalFilename is the non-versioned name used before versioning existed.
func (c ContentType) CanonicalFilename() string {
	s := c.spec()
	return s.baseName + s.extension
}

// ParseFilename extracts the version number from a versioned filename of type c.
func (c ContentType) ParseFilename(name string) (int, bool) {
	m := c.spec().pattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}

// MatchVersionedFilename returns the content type and version encoded in name.
func MatchVersionedFilename(name string) (ContentType, int, bool) {
	for _, ct := range AllContentTypes() {
		if v, ok := ct.ParseFilename(name); ok {
			return ct, v, true
		}
	}
	return "", 0, false
}

func contentTypeForJobPrefix(prefix string) (ContentType, bool) {
	for _, ct := range AllContentTypes() {
		if contentSpecs[ct].jobPrefix == prefix {
			return ct, true
		}
	}
	return "", false
}
