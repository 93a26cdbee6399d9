package manifest

import (
	"io"

	"github.com/goccy/go-yaml"
)

// LoadDocuments reads every YAML document out of r (a "---"-separated
// stream, as a bundle/group/manifest set is typically authored) and
// returns them as Documents. Documents with no "schema" key are kept; it's
// Resolve's job, not the loader's, to ignore what it doesn't recognize.
//
// codec.YamlCodec().Read builds a fresh yaml.NewDecoder(r) on every call,
// which re-tokenizes r from scratch each time it's invoked; goccy/go-yaml
// buffers the whole reader on its first Decode, so a second call against
// the same r sees nothing left to read. A multi-document stream needs one
// decoder reused across every document, so this reads through goccy/go-yaml
// directly instead of going through the single-document Codec interface.
func LoadDocuments(r io.Reader) ([]Document, error) {
	decoder := yaml.NewDecoder(r)

	var docs []Document
	for {
		var doc Document
		if err := decoder.Decode(&doc); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if doc == nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
