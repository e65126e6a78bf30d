package migration

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pendergraft/veriport/pkg/explorer"
)

// ConvertOptions controls explorer-dependent conversion behavior
type ConvertOptions struct {
	// QualifyContractName submits the contract name as "<Name>.sol:<Name>"
	// instead of the bare name. Some explorers require the qualified form,
	// others reject it.
	QualifyContractName bool
}

// standardJSON is the solidity standard-json-input document synthesized for
// single-file sources. The settings keys follow the compiler input
// description.
type standardJSON struct {
	Language string                `json:"language"`
	Sources  map[string]sourceFile `json:"sources"`
	Settings *standardJSONSettings `json:"settings,omitempty"`
}

type sourceFile struct {
	Content string `json:"content"`
}

type standardJSONSettings struct {
	EVMVersion string            `json:"evm_version"`
	Libraries  map[string]string `json:"libraries"`
	Optimizer  optimizerSettings `json:"optimizer"`
	Remappings []string          `json:"remappings"`
}

type optimizerSettings struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// NormalizeCompilerVersion prepends the leading "v" some explorers omit.
// Idempotent: an already-marked version passes through unchanged.
func NormalizeCompilerVersion(version string) string {
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}

// QualifyContractName builds the fully qualified "<Name>.sol:<Name>" form
func QualifyContractName(name string) string {
	return fmt.Sprintf("%s.sol:%s", name, name)
}

// Convert reshapes fetched source metadata into the verification request the
// target explorer accepts. It is a pure function: conversion failures are
// data errors and are never retried.
func Convert(address string, md *explorer.SourceMetadata, opts ConvertOptions) (*explorer.VerifyRequest, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	name := md.ContractName
	if opts.QualifyContractName {
		name = QualifyContractName(md.ContractName)
	}

	source, err := serializeSource(name, md)
	if err != nil {
		return nil, err
	}

	return &explorer.VerifyRequest{
		Address:              common.HexToAddress(address),
		ContractName:         name,
		CompilerVersion:      NormalizeCompilerVersion(md.CompilerVersion),
		OptimizationUsed:     md.OptimizationUsed,
		Runs:                 md.Runs,
		ConstructorArguments: md.ConstructorArguments,
		EVMVersion:           md.EVMVersion,
		SourceCode:           source,
	}, nil
}

func serializeSource(name string, md *explorer.SourceMetadata) (string, error) {
	switch enc := md.Source.(type) {
	case explorer.SingleFile:
		// Explorers that reject flattened submissions still accept the
		// same content wrapped as a one-entry standard-json-input document.
		doc := standardJSON{
			Language: "Solidity",
			Sources: map[string]sourceFile{
				name: {Content: enc.Content},
			},
			Settings: &standardJSONSettings{
				EVMVersion: md.EVMVersion,
				Libraries:  map[string]string{},
				Optimizer: optimizerSettings{
					Enabled: md.OptimizationUsed,
					Runs:    md.Runs,
				},
				Remappings: []string{},
			},
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("serializing single-file source: %w", err)
		}
		return string(out), nil

	case explorer.StandardJSONInput:
		// Already compiler-input shaped; re-serialize unchanged.
		var buf strings.Builder
		if err := compactJSON(&buf, enc.Raw); err != nil {
			return "", fmt.Errorf("re-serializing standard-json source: %w", err)
		}
		return buf.String(), nil

	case explorer.SourcesMap:
		// Multi-file source not yet in compiler-input shape. Serialized as
		// the bare path -> {content} map; upstream behavior for this shape
		// is unspecified, the exact output is pinned by tests.
		files := make(map[string]sourceFile, len(enc.Files))
		for path, content := range enc.Files {
			files[path] = sourceFile{Content: content}
		}
		out, err := json.Marshal(files)
		if err != nil {
			return "", fmt.Errorf("serializing sources map: %w", err)
		}
		return string(out), nil

	default:
		return "", fmt.Errorf("unsupported source encoding %T", md.Source)
	}
}

func compactJSON(buf *strings.Builder, raw json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = buf.Write(out)
	return err
}
