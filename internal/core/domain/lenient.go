package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Vision output is produced by a language model and drifts in shape: numbers
// arrive as strings, lists as single strings, bools as "yes". The types below
// accept those variants and fall back to the zero value instead of failing.

type lenientFloat float64

func (f *lenientFloat) UnmarshalJSON(data []byte) error {
	*f = 0
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = lenientFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*f = lenientFloat(v)
		}
	}
	return nil
}

type lenientBool bool

func (b *lenientBool) UnmarshalJSON(data []byte) error {
	*b = false
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = lenientBool(v)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*b = n != 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "y", "1":
			*b = true
		}
	}
	return nil
}

type lenientString string

func (s *lenientString) UnmarshalJSON(data []byte) error {
	*s = ""
	var v string
	if err := json.Unmarshal(data, &v); err == nil {
		*s = lenientString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*s = lenientString(n.String())
	}
	return nil
}

type lenientStrings []string

func (l *lenientStrings) UnmarshalJSON(data []byte) error {
	*l = nil
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil && strings.TrimSpace(s) != "" {
			*l = []string{s}
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				out = append(out, s)
			}
		}
		*l = out
	}
	return nil
}

func (in *ImageInsight) UnmarshalJSON(data []byte) error {
	type plain ImageInsight
	aux := struct {
		*plain
		RoleScore         lenientFloat   `json:"roleScore"`
		HasVisibleText    lenientBool    `json:"hasVisibleText"`
		DominantColor     lenientString  `json:"dominantColor"`
		EvidenceTriggers  lenientStrings `json:"evidenceTriggers"`
		VisualDescription lenientString  `json:"visualDescription"`
		OCRText           lenientString  `json:"ocrText"`
		TextBlocks        lenientStrings `json:"textBlocks"`
		Text              lenientString  `json:"text"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	in.RoleScore = float64(aux.RoleScore)
	in.HasVisibleText = bool(aux.HasVisibleText)
	in.DominantColor = string(aux.DominantColor)
	in.EvidenceTriggers = []string(aux.EvidenceTriggers)
	in.VisualDescription = string(aux.VisualDescription)
	in.OCRText = string(aux.OCRText)
	in.TextBlocks = []string(aux.TextBlocks)
	in.Text = string(aux.Text)
	return nil
}

// UnmarshalJSON accepts the object form, a bare string, or a bare list of
// lines. Anything else decodes to an empty payload.
func (p *OCRPayload) UnmarshalJSON(data []byte) error {
	*p = OCRPayload{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			p.Text = s
		}
	case '[':
		var lines lenientStrings
		_ = json.Unmarshal(trimmed, &lines)
		p.Lines = lines
	case '{':
		var aux struct {
			Text  lenientString  `json:"text"`
			Lines lenientStrings `json:"lines"`
		}
		if err := json.Unmarshal(trimmed, &aux); err == nil {
			p.Text = string(aux.Text)
			p.Lines = aux.Lines
		}
	}
	return nil
}
