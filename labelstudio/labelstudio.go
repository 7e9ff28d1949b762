// Package labelstudio reads Label Studio JSON exports into file/label pairs
// that the classification data modules can consume directly.
package labelstudio

import (
	"os"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Annotation is one labeled file from an export: the media file referenced
// by the task and the first choice of its first annotation result.
type Annotation struct {
	File  string
	Label string
}

// dataKeys are the task data fields checked, in order, for the media file.
var dataKeys = []string{"data.video", "data.image", "data.path"}

// ParseExport parses the raw bytes of a Label Studio JSON export. Tasks
// without a usable file reference are rejected; tasks without annotations
// are kept with an empty label so they can still feed a predict stage.
func ParseExport(raw []byte) ([]Annotation, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("labelstudio: export is not valid JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsArray() {
		return nil, errors.New("labelstudio: export must be a JSON array of tasks")
	}

	var out []Annotation
	var parseErr error
	root.ForEach(func(_, task gjson.Result) bool {
		var file string
		for _, key := range dataKeys {
			if v := task.Get(key); v.Exists() {
				file = v.String()
				break
			}
		}
		if file == "" {
			parseErr = errors.Errorf("labelstudio: task %s has no file reference", task.Get("id").Raw)
			return false
		}
		label := task.Get("annotations.0.result.0.value.choices.0").String()
		out = append(out, Annotation{File: file, Label: label})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return out, nil
}

// ParseExportFile is ParseExport over the contents of path.
func ParseExportFile(path string) ([]Annotation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading label export %s", path)
	}
	return ParseExport(raw)
}
