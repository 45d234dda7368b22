package jmdict

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/japaniel/jpdict/pkg/archive"
)

// Entry matches the structure of jmdict-simplified words.
type Entry struct {
	ID    string    `json:"id"`
	Kanji []Element `json:"kanji"`
	Kana  []Element `json:"kana"`
	Sense []Sense   `json:"sense"`
}

type Element struct {
	Text   string   `json:"text"`
	Common bool     `json:"common"`
	Tags   []string `json:"tags"`
	// AppliesToKanji restricts a kana reading to some kanji spellings. "*"
	// means all of them.
	AppliesToKanji []string `json:"appliesToKanji"`
}

type Sense struct {
	PartOfSpeech []string `json:"partOfSpeech"`
	Misc         []string `json:"misc"`
	Info         []string `json:"info"`
	Gloss        []Gloss  `json:"gloss"`
}

type Gloss struct {
	Text string `json:"text"`
	Lang string `json:"lang"` // defaults to 'eng' if missing
}

// document is an open jmdict-simplified JSON stream positioned at the first
// word.
type document struct {
	version string
	dec     *json.Decoder
}

// openJSON finds the JSON document inside data: plain JSON, gzip'ed JSON,
// a (compressed) tar holding a .json file, or a zip holding one.
func openJSON(data []byte) (io.Reader, error) {
	if archive.IsZip(data) {
		zr, err := archive.OpenZip(data)
		if err != nil {
			return nil, err
		}
		if archive.FindZipFile(zr, "index.json") != nil {
			return nil, errors.New("zip has an index.json, not a JMdict export")
		}
		for _, f := range zr.File {
			if strings.HasSuffix(strings.ToLower(f.Name), ".json") {
				doc, err := archive.ReadZipFile(f)
				if err != nil {
					return nil, err
				}
				return bytes.NewReader(doc), nil
			}
		}
		return nil, errors.New("no .json file in zip")
	}

	raw, err := archive.Decompress(data)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(raw)
	head, _ := br.Peek(262)
	if len(head) == 262 && bytes.Equal(head[257:262], []byte("ustar")) {
		// A tarball: decompress once more into memory and pick the json member.
		var doc []byte
		err := archive.WalkTar(data, func(name string, r io.Reader) error {
			if !strings.HasSuffix(strings.ToLower(name), ".json") {
				return nil
			}
			var err error
			doc, err = io.ReadAll(r)
			if err != nil {
				return errors.Wrapf(err, "read %s", name)
			}
			return archive.ErrStopWalk
		})
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, errors.New("no .json file in tar")
		}
		return bytes.NewReader(doc), nil
	}
	return br, nil
}

// open reads up to the start of the words array. Keys before "words" are
// inspected for the version; a bare top-level array is accepted as well.
func open(data []byte) (*document, error) {
	r, err := openJSON(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "read JSON")
	}
	doc := &document{dec: dec}
	switch tok {
	case json.Delim('['):
		return doc, nil
	case json.Delim('{'):
	default:
		return nil, errors.New("expected a JSON object or array")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "read JSON")
		}
		key, _ := tok.(string)
		switch key {
		case "version":
			if err := dec.Decode(&doc.version); err != nil {
				return nil, errors.Wrap(err, "read version")
			}
		case "words":
			tok, err := dec.Token()
			if err != nil {
				return nil, errors.Wrap(err, "read words")
			}
			if tok != json.Delim('[') {
				return nil, errors.New("words is not an array")
			}
			return doc, nil
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, errors.Wrapf(err, "skip %s", key)
			}
		}
	}
	return nil, errors.New("no words array")
}

// next decodes the next word. It returns io.EOF after the last one.
func (d *document) next() (Entry, error) {
	if !d.dec.More() {
		return Entry{}, io.EOF
	}
	var e Entry
	if err := d.dec.Decode(&e); err != nil {
		return Entry{}, errors.Wrap(err, "decode word")
	}
	return e, nil
}
