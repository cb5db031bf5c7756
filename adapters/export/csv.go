package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/tidwall/gjson"

	domainInsight "kpiscout/domain/insight"
)

// Entry is one flattened leaf of the results document
type Entry struct {
	Path  string
	Value string
}

// Flatten turns the results JSON into dotted path / value pairs. Array
// elements use their index as the path segment; empty objects and arrays
// are kept as "{}" and "[]" so no key disappears.
func Flatten(results *domainInsight.Results) ([]Entry, error) {
	raw, err := json.Marshal(results)
	if err != nil {
		return nil, err
	}
	var out []Entry
	flatten("", gjson.ParseBytes(raw), &out)
	return out, nil
}

func flatten(prefix string, v gjson.Result, out *[]Entry) {
	if !v.IsObject() && !v.IsArray() {
		*out = append(*out, Entry{Path: prefix, Value: v.String()})
		return
	}

	n := 0
	isArray := v.IsArray()
	v.ForEach(func(key, val gjson.Result) bool {
		segment := key.String()
		if isArray {
			segment = strconv.Itoa(n)
		}
		n++
		flatten(joinPath(prefix, segment), val, out)
		return true
	})
	if n == 0 && prefix != "" {
		*out = append(*out, Entry{Path: prefix, Value: v.Raw})
	}
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}

// WriteFlatCSV writes a two-column path,value CSV
func WriteFlatCSV(w io.Writer, results *domainInsight.Results) error {
	entries, err := Flatten(results)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"path", "value"}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Path, e.Value}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
