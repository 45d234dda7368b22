package yomichanaudio

import (
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/japaniel/jpdict/pkg/dictionary"
)

type source string

const (
	sourceForvo       source = "forvo"
	sourceJpod        source = "jpod"
	sourceNhk16       source = "nhk16"
	sourceShinmeikai8 source = "shinmeikai8"
)

var sourceDirs = map[string]source{
	"forvo_files":       sourceForvo,
	"jpod_files":        sourceJpod,
	"nhk16_files":       sourceNhk16,
	"shinmeikai8_files": sourceShinmeikai8,
}

// Index files that map media names to terms.
var indexFiles = map[string]source{
	"jpod_files/index.json":        sourceJpod,
	"nhk16_files/entries.json":     sourceNhk16,
	"shinmeikai8_files/index.json": sourceShinmeikai8,
}

// member is a classified archive member.
type member struct {
	source source
	// rel is the path below the source directory.
	rel string
}

// classify places an archive member under its source directory. Members may
// be nested under "user_files/".
func classify(name string) (member, bool) {
	name = strings.TrimPrefix(name, "user_files/")
	dir, rel, ok := strings.Cut(name, "/")
	if !ok || rel == "" {
		return member{}, false
	}
	src, ok := sourceDirs[dir]
	if !ok {
		return member{}, false
	}
	return member{source: src, rel: rel}, true
}

func indexSource(name string) (source, bool) {
	src, ok := indexFiles[strings.TrimPrefix(name, "user_files/")]
	return src, ok
}

var audioFormats = map[string]dictionary.AudioFormat{
	".opus": dictionary.AudioOpus,
	".mp3":  dictionary.AudioMP3,
	".aac":  dictionary.AudioAAC,
	".m4a":  dictionary.AudioAAC,
	".ogg":  dictionary.AudioOgg,
	".oga":  dictionary.AudioOgg,
}

func formatOf(name string) (dictionary.AudioFormat, bool) {
	f, ok := audioFormats[strings.ToLower(path.Ext(name))]
	return f, ok
}

// fileInfo is what an index says about one media file.
type fileInfo struct {
	terms        []dictionary.Term
	username     string
	pitchPattern string
	pitchNumber  *int
	pitches      []int
}

// mediaIndex maps media base names to their metadata.
type mediaIndex map[string]*fileInfo

func (m mediaIndex) entry(file string) *fileInfo {
	key := path.Base(file)
	fi, ok := m[key]
	if !ok {
		fi = &fileInfo{}
		m[key] = fi
	}
	return fi
}

func (fi *fileInfo) addTerm(t dictionary.Term) {
	for _, have := range fi.terms {
		if have == t {
			return
		}
	}
	fi.terms = append(fi.terms, t)
}

// parseHeadwordIndex reads the JPod and Shinmeikai8 layout:
//
//	{"headwords": {"猫": ["neko.opus"]},
//	 "files": {"neko.opus": {"kana_reading": "ねこ", "pitch_pattern": "...", "pitch_number": "1"}}}
func parseHeadwordIndex(name string, data []byte) (mediaIndex, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.Errorf("%s: invalid JSON", name)
	}
	root := gjson.ParseBytes(data)
	headwords := root.Get("headwords")
	if !headwords.IsObject() {
		return nil, errors.Errorf("%s: missing headwords", name)
	}
	files := root.Get("files").Map()

	idx := make(mediaIndex)
	headwords.ForEach(func(hw, list gjson.Result) bool {
		for _, f := range list.Array() {
			file := f.String()
			if file == "" {
				continue
			}
			meta := files[file]
			t, ok := dictionary.NewTerm(hw.String(), meta.Get("kana_reading").String())
			if !ok {
				continue
			}
			fi := idx.entry(file)
			fi.addTerm(t)
			if p := meta.Get("pitch_pattern"); p.Exists() {
				fi.pitchPattern = p.String()
			}
			if n := meta.Get("pitch_number"); n.Exists() && n.String() != "" {
				v := int(n.Int())
				fi.pitchNumber = &v
			}
		}
		return true
	})
	return idx, nil
}

// parseNhk16 reads entries.json: an array of
//
//	{"kana": "ネコ", "kanji": ["猫"], "accents": [{"soundFile": "x.opus", "accent": [{"pitchAccent": 1}]}]}
func parseNhk16(name string, data []byte) (mediaIndex, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.Errorf("%s: invalid JSON", name)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, errors.Errorf("%s: expected an array", name)
	}

	idx := make(mediaIndex)
	for _, e := range root.Array() {
		kana := dictionary.ToHiragana(e.Get("kana").String())
		var terms []dictionary.Term
		for _, k := range e.Get("kanji").Array() {
			if t, ok := dictionary.NewTerm(k.String(), kana); ok {
				terms = append(terms, t)
			}
		}
		if len(terms) == 0 {
			if t, ok := dictionary.ReadingTerm(kana); ok {
				terms = append(terms, t)
			}
		}
		if len(terms) == 0 {
			continue
		}
		for _, a := range e.Get("accents").Array() {
			file := a.Get("soundFile").String()
			if file == "" {
				continue
			}
			fi := idx.entry(file)
			for _, t := range terms {
				fi.addTerm(t)
			}
			if len(fi.pitches) == 0 {
				for _, p := range a.Get("accent").Array() {
					if pa := p.Get("pitchAccent"); pa.Exists() {
						fi.pitches = append(fi.pitches, int(pa.Int()))
					}
				}
			}
		}
	}
	return idx, nil
}
