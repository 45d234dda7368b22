package yomitan

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/japaniel/jpdict/pkg/dictionary"
)

// Schema captures the index.json settings that change how banks are read.
type Schema struct {
	// Version is the bank format: 1 stores glossaries inline after the
	// score, 3 stores them as one array and adds structured content.
	Version int
	// FrequencyMode says how to interpret numbers in frequency banks.
	FrequencyMode dictionary.FrequencyMode
}

type index struct {
	meta   dictionary.Meta
	schema Schema
}

func parseIndex(data []byte) (index, error) {
	if !gjson.ValidBytes(data) {
		return index{}, errors.New("index.json: invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return index{}, errors.New("index.json: not an object")
	}
	title := strings.TrimSpace(root.Get("title").String())
	if title == "" {
		return index{}, errors.New("index.json: missing title")
	}

	meta := dictionary.NewMeta(dictionary.KindYomitan, title)
	meta.Version = root.Get("revision").String()
	meta.Description = root.Get("description").String()
	meta.URL = root.Get("url").String()
	meta.Attribution = root.Get("attribution").String()

	schema := Schema{Version: 3, FrequencyMode: dictionary.FrequencyRank}
	version := root.Get("format")
	if !version.Exists() {
		version = root.Get("version")
	}
	if version.Exists() {
		v, err := strconv.Atoi(version.String())
		if err != nil {
			return index{}, errors.Errorf("index.json: bad format %q", version.String())
		}
		switch v {
		case 1, 2, 3:
			schema.Version = v
		default:
			return index{}, errors.Errorf("index.json: unsupported format %d", v)
		}
	}
	if root.Get("frequencyMode").String() == "occurrence-based" {
		schema.FrequencyMode = dictionary.FrequencyOccurrence
	}
	return index{meta: meta, schema: schema}, nil
}
