package yomitan

import (
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/japaniel/jpdict/pkg/dictionary"
)

// Structured content element fields copied into ContentNode.Attrs.
var contentAttrs = []string{
	"href", "lang", "title", "alt", "path", "width", "height", "sizeUnits",
	"colSpan", "rowSpan", "open", "description", "verticalAlign",
	"imageRendering", "appearance", "background", "collapsed", "collapsible",
}

// parseGlossary converts one item of a term's glossary array.
func parseGlossary(v gjson.Result) (dictionary.GlossaryContent, error) {
	switch {
	case v.Type == gjson.String:
		return dictionary.GlossaryContent{Type: dictionary.ContentText, Text: v.Str}, nil
	case v.IsArray():
		// [uninflected, [rule, ...]]
		f := v.Array()
		if len(f) < 1 || f[0].Type != gjson.String {
			return dictionary.GlossaryContent{}, errors.New("deinflection glossary without a term")
		}
		hint := &dictionary.DeinflectionHint{Uninflected: f[0].Str}
		if len(f) > 1 {
			for _, r := range f[1].Array() {
				hint.Rules = append(hint.Rules, r.String())
			}
		}
		return dictionary.GlossaryContent{Type: dictionary.ContentDeinflection, Deinflection: hint}, nil
	case v.IsObject():
		switch kind := v.Get("type").String(); kind {
		case "text":
			return dictionary.GlossaryContent{Type: dictionary.ContentText, Text: v.Get("text").String()}, nil
		case "image":
			img, err := parseImage(v)
			if err != nil {
				return dictionary.GlossaryContent{}, err
			}
			return dictionary.GlossaryContent{Type: dictionary.ContentImage, Image: img}, nil
		case "structured-content":
			root := wrapNodes(parseContent(v.Get("content")))
			return dictionary.GlossaryContent{Type: dictionary.ContentStructured, Structured: &root}, nil
		default:
			return dictionary.GlossaryContent{}, errors.Errorf("unknown glossary type %q", kind)
		}
	default:
		return dictionary.GlossaryContent{}, errors.Errorf("unexpected glossary value %s", v.Raw)
	}
}

func parseImage(v gjson.Result) (*dictionary.Image, error) {
	p := v.Get("path").String()
	if p == "" {
		return nil, errors.New("image glossary without a path")
	}
	return &dictionary.Image{
		Path:        p,
		Width:       int(v.Get("width").Int()),
		Height:      int(v.Get("height").Int()),
		Title:       v.Get("title").String(),
		Description: v.Get("description").String(),
		Alt:         v.Get("alt").String(),
	}, nil
}

// parseContent normalizes structured content, which is a string, an element
// object or an array of either.
func parseContent(v gjson.Result) []dictionary.ContentNode {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return nil
	case v.Type == gjson.String:
		return []dictionary.ContentNode{{Text: v.Str}}
	case v.IsArray():
		var out []dictionary.ContentNode
		for _, c := range v.Array() {
			out = append(out, parseContent(c)...)
		}
		return out
	case v.IsObject():
		tag := v.Get("tag").String()
		if tag == "" {
			// Untagged objects carry no markup; keep their text.
			return parseContent(v.Get("content"))
		}
		n := dictionary.ContentNode{Tag: tag}
		for _, name := range contentAttrs {
			if a := v.Get(name); a.Exists() && a.Type != gjson.JSON {
				n.Attrs = setKey(n.Attrs, name, a.String())
			}
		}
		n.Style = flatten(v.Get("style"))
		n.Data = flatten(v.Get("data"))
		n.Children = parseContent(v.Get("content"))
		return []dictionary.ContentNode{n}
	default:
		return []dictionary.ContentNode{{Text: v.String()}}
	}
}

// wrapNodes returns the single node, or a div holding several.
func wrapNodes(nodes []dictionary.ContentNode) dictionary.ContentNode {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return dictionary.ContentNode{Tag: "div", Children: nodes}
}

func flatten(v gjson.Result) map[string]string {
	if !v.IsObject() {
		return nil
	}
	var out map[string]string
	v.ForEach(func(k, val gjson.Result) bool {
		if val.Type != gjson.JSON {
			out = setKey(out, k.String(), val.String())
		}
		return true
	})
	return out
}

func setKey(m map[string]string, k, v string) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[k] = v
	return m
}
