package explorer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// SourceMetadata is the verified source record for a contract, as fetched
// from an explorer. It is immutable once returned.
type SourceMetadata struct {
	ContractName         string
	CompilerVersion      string
	EVMVersion           string
	OptimizationUsed     bool
	Runs                 int
	ConstructorArguments []byte
	LicenseType          string
	// Proxy and Implementation are informational only; a proxy is migrated
	// as-is and its implementation is a separate address.
	Proxy          bool
	Implementation string

	Source SourceEncoding
}

// SourceEncoding is the shape the explorer delivered the verified source in.
// Exactly one of SingleFile, StandardJSONInput or SourcesMap.
type SourceEncoding interface {
	isSourceEncoding()
}

// SingleFile is one flattened source blob
type SingleFile struct {
	Content string
}

// StandardJSONInput is a document already in the multi-file compiler-input
// shape (language / sources / settings)
type StandardJSONInput struct {
	Raw json.RawMessage
}

// SourcesMap is a set of named files not yet assembled into compiler-input
// shape: path -> content
type SourcesMap struct {
	Files map[string]string
}

func (SingleFile) isSourceEncoding()        {}
func (StandardJSONInput) isSourceEncoding() {}
func (SourcesMap) isSourceEncoding()        {}

// sourceCodeRecord is the wire shape of one getsourcecode result entry.
// Etherscan delivers every field as a string.
type sourceCodeRecord struct {
	SourceCode           string `json:"SourceCode"`
	ABI                  string `json:"ABI"`
	ContractName         string `json:"ContractName"`
	CompilerVersion      string `json:"CompilerVersion"`
	OptimizationUsed     string `json:"OptimizationUsed"`
	Runs                 string `json:"Runs"`
	ConstructorArguments string `json:"ConstructorArguments"`
	EVMVersion           string `json:"EVMVersion"`
	Library              string `json:"Library"`
	LicenseType          string `json:"LicenseType"`
	Proxy                string `json:"Proxy"`
	Implementation       string `json:"Implementation"`
}

func (r *sourceCodeRecord) toMetadata() (*SourceMetadata, error) {
	if r.SourceCode == "" {
		return nil, fmt.Errorf("contract source code not verified")
	}

	runs := 0
	if r.Runs != "" {
		n, err := strconv.Atoi(r.Runs)
		if err != nil {
			return nil, fmt.Errorf("invalid optimizer runs %q: %w", r.Runs, err)
		}
		runs = n
	}

	return &SourceMetadata{
		ContractName:         r.ContractName,
		CompilerVersion:      r.CompilerVersion,
		EVMVersion:           r.EVMVersion,
		OptimizationUsed:     r.OptimizationUsed == "1",
		Runs:                 runs,
		ConstructorArguments: common.FromHex(r.ConstructorArguments),
		LicenseType:          r.LicenseType,
		Proxy:                r.Proxy == "1",
		Implementation:       r.Implementation,
		Source:               parseSourceCode(r.SourceCode),
	}, nil
}

// parseSourceCode sniffs which of the three encodings the SourceCode field
// carries. Etherscan wraps standard-json verified sources in an extra pair
// of braces ("{{ ... }}"); a bare JSON object of file entries is a sources
// map; anything else is a flattened single file.
func parseSourceCode(s string) SourceEncoding {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		inner := trimmed[1 : len(trimmed)-1]
		if json.Valid([]byte(inner)) {
			return StandardJSONInput{Raw: json.RawMessage(inner)}
		}
	}

	if strings.HasPrefix(trimmed, "{") {
		var files map[string]struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(trimmed), &files); err == nil && len(files) > 0 {
			m := make(map[string]string, len(files))
			valid := true
			for path, entry := range files {
				if entry.Content == "" {
					valid = false
					break
				}
				m[path] = entry.Content
			}
			if valid {
				return SourcesMap{Files: m}
			}
		}
	}

	return SingleFile{Content: s}
}
