package explorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func sourceCodeHandler(t *testing.T, record map[string]string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("module") != "contract" || q.Get("action") != "getsourcecode" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("apikey") != "test-key" {
			t.Errorf("expected apikey test-key, got %s", q.Get("apikey"))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"status":  "1",
			"message": "OK",
			"result":  []map[string]string{record},
		})
	}
}

func TestClient_GetSourceCode_SingleFile(t *testing.T) {
	server := httptest.NewServer(sourceCodeHandler(t, map[string]string{
		"SourceCode":           "pragma solidity ^0.8.19;\ncontract Token {}",
		"ContractName":         "Token",
		"CompilerVersion":      "v0.8.19+commit.7dd6d404",
		"OptimizationUsed":     "1",
		"Runs":                 "200",
		"ConstructorArguments": "0000000000000000000000000000000000000000000000000000000000000001",
		"EVMVersion":           "paris",
		"Proxy":                "0",
	}))
	defer server.Close()

	client := New(server.URL, "test-key", WithRateLimit(0))
	md, err := client.GetSourceCode(context.Background(), "0x7C07F7aBe10CE8e33DC6C5aD68FE033085256A84")
	if err != nil {
		t.Fatalf("GetSourceCode() error = %v", err)
	}

	if md.ContractName != "Token" {
		t.Errorf("ContractName = %s, want Token", md.ContractName)
	}
	if !md.OptimizationUsed || md.Runs != 200 {
		t.Errorf("optimizer = (%v, %d), want (true, 200)", md.OptimizationUsed, md.Runs)
	}
	if len(md.ConstructorArguments) != 32 || md.ConstructorArguments[31] != 1 {
		t.Errorf("ConstructorArguments decoded incorrectly: %x", md.ConstructorArguments)
	}

	single, ok := md.Source.(SingleFile)
	if !ok {
		t.Fatalf("Source = %T, want SingleFile", md.Source)
	}
	if single.Content != "pragma solidity ^0.8.19;\ncontract Token {}" {
		t.Errorf("SingleFile content not preserved: %q", single.Content)
	}
}

func TestClient_GetSourceCode_StandardJSONInput(t *testing.T) {
	stdJSON := `{"language":"Solidity","sources":{"src/Router.sol":{"content":"contract Router {}"}},"settings":{"optimizer":{"enabled":true,"runs":1000000}}}`
	server := httptest.NewServer(sourceCodeHandler(t, map[string]string{
		"SourceCode":      "{" + stdJSON + "}",
		"ContractName":    "Router",
		"CompilerVersion": "v0.7.6+commit.7338295f",
	}))
	defer server.Close()

	client := New(server.URL, "test-key", WithRateLimit(0))
	md, err := client.GetSourceCode(context.Background(), "0xE592427A0AEce92De3Edee1F18E0157C05861564")
	if err != nil {
		t.Fatalf("GetSourceCode() error = %v", err)
	}

	std, ok := md.Source.(StandardJSONInput)
	if !ok {
		t.Fatalf("Source = %T, want StandardJSONInput", md.Source)
	}

	var doc struct {
		Language string `json:"language"`
	}
	if err := json.Unmarshal(std.Raw, &doc); err != nil {
		t.Fatalf("raw document is not valid JSON: %v", err)
	}
	if doc.Language != "Solidity" {
		t.Errorf("language = %s, want Solidity", doc.Language)
	}
}

func TestClient_GetSourceCode_SourcesMap(t *testing.T) {
	server := httptest.NewServer(sourceCodeHandler(t, map[string]string{
		"SourceCode":      `{"src/A.sol":{"content":"contract A {}"},"src/B.sol":{"content":"contract B {}"}}`,
		"ContractName":    "A",
		"CompilerVersion": "0.8.21+commit.d9974bed",
	}))
	defer server.Close()

	client := New(server.URL, "test-key", WithRateLimit(0))
	md, err := client.GetSourceCode(context.Background(), "0x000000000000Ad05Ccc4F10045630fb830B95127")
	if err != nil {
		t.Fatalf("GetSourceCode() error = %v", err)
	}

	sources, ok := md.Source.(SourcesMap)
	if !ok {
		t.Fatalf("Source = %T, want SourcesMap", md.Source)
	}
	if len(sources.Files) != 2 {
		t.Errorf("SourcesMap has %d files, want 2", len(sources.Files))
	}
	if sources.Files["src/A.sol"] != "contract A {}" {
		t.Errorf("src/A.sol content = %q", sources.Files["src/A.sol"])
	}
}

func TestClient_GetSourceCode_FirstRecordWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "1",
			"message": "OK",
			"result": []map[string]string{
				{"SourceCode": "contract First {}", "ContractName": "First"},
				{"SourceCode": "contract Second {}", "ContractName": "Second"},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "", WithRateLimit(0))
	md, err := client.GetSourceCode(context.Background(), "0x7C07F7aBe10CE8e33DC6C5aD68FE033085256A84")
	if err != nil {
		t.Fatalf("GetSourceCode() error = %v", err)
	}
	if md.ContractName != "First" {
		t.Errorf("ContractName = %s, want First", md.ContractName)
	}
}

func TestClient_GetSourceCode_NotVerified(t *testing.T) {
	server := httptest.NewServer(sourceCodeHandler(t, map[string]string{
		"SourceCode": "",
		"ABI":        "Contract source code not verified",
	}))
	defer server.Close()

	client := New(server.URL, "test-key", WithRateLimit(0))
	if _, err := client.GetSourceCode(context.Background(), "0x7C07F7aBe10CE8e33DC6C5aD68FE033085256A84"); err == nil {
		t.Fatal("expected error for unverified contract")
	}
}

func TestClient_GetSourceCode_ErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "0",
			"message": "NOTOK",
			"result":  "Max rate limit reached",
		})
	}))
	defer server.Close()

	client := New(server.URL, "test-key", WithRateLimit(0))
	_, err := client.GetSourceCode(context.Background(), "0x7C07F7aBe10CE8e33DC6C5aD68FE033085256A84")
	if err == nil {
		t.Fatal("expected error for NOTOK envelope")
	}
}

func TestClient_VerifySourceCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}

		if got := r.PostForm.Get("action"); got != "verifysourcecode" {
			t.Errorf("action = %s, want verifysourcecode", got)
		}
		if got := r.PostForm.Get("codeformat"); got != "solidity-standard-json-input" {
			t.Errorf("codeformat = %s", got)
		}
		if got := r.PostForm.Get("contractaddress"); got != "0x7c07f7abe10ce8e33dc6c5ad68fe033085256a84" {
			t.Errorf("contractaddress = %s", got)
		}
		if got := r.PostForm.Get("contractname"); got != "Token.sol:Token" {
			t.Errorf("contractname = %s", got)
		}
		// Field name typo is part of the Etherscan protocol
		if got := r.PostForm.Get("constructorArguements"); got != "dead" {
			t.Errorf("constructorArguements = %s, want dead", got)
		}
		if got := r.PostForm.Get("optimizationUsed"); got != "1" {
			t.Errorf("optimizationUsed = %s, want 1", got)
		}
		if got := r.PostForm.Get("runs"); got != "200" {
			t.Errorf("runs = %s, want 200", got)
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status":  "1",
			"message": "OK",
			"result":  "ezmayfqvs3dmiccwhbqmji8nma4ztfdnepbq1hlzwf2mbpsfzr",
		})
	}))
	defer server.Close()

	client := New(server.URL, "test-key", WithRateLimit(0))
	resp, err := client.VerifySourceCode(context.Background(), &VerifyRequest{
		Address:              common.HexToAddress("0x7C07F7aBe10CE8e33DC6C5aD68FE033085256A84"),
		ContractName:         "Token.sol:Token",
		CompilerVersion:      "v0.8.19+commit.7dd6d404",
		OptimizationUsed:     true,
		Runs:                 200,
		ConstructorArguments: []byte{0xde, 0xad},
		EVMVersion:           "paris",
		SourceCode:           `{"language":"Solidity","sources":{}}`,
	})
	if err != nil {
		t.Fatalf("VerifySourceCode() error = %v", err)
	}

	if resp.Message != "OK" {
		t.Errorf("Message = %s, want OK", resp.Message)
	}
	if resp.Result == "" {
		t.Error("expected a request GUID in Result")
	}
}

func TestClient_CheckVerifyStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "checkverifystatus" {
			t.Errorf("action = %s, want checkverifystatus", q.Get("action"))
		}
		if q.Get("guid") != "some-guid" {
			t.Errorf("guid = %s, want some-guid", q.Get("guid"))
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status":  "1",
			"message": "OK",
			"result":  "Pass - Verified",
		})
	}))
	defer server.Close()

	client := New(server.URL, "test-key", WithRateLimit(0))
	status, err := client.CheckVerifyStatus(context.Background(), "some-guid")
	if err != nil {
		t.Fatalf("CheckVerifyStatus() error = %v", err)
	}
	if status.Result != "Pass - Verified" {
		t.Errorf("Result = %s, want Pass - Verified", status.Result)
	}
}

func TestClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	client := New(server.URL, "test-key", WithRateLimit(0))
	if _, err := client.CheckVerifyStatus(context.Background(), "some-guid"); err == nil {
		t.Fatal("expected error for HTTP 403")
	}
}

func TestParseSourceCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"flattened", "contract A {}", "SingleFile"},
		{"double brace standard json", `{{"language":"Solidity","sources":{}}}`, "StandardJSONInput"},
		{"sources map", `{"A.sol":{"content":"contract A {}"}}`, "SourcesMap"},
		{"json-looking source", `{ not json at all`, "SingleFile"},
		{"object without content entries", `{"foo":"bar"}`, "SingleFile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			switch parseSourceCode(tt.in).(type) {
			case SingleFile:
				got = "SingleFile"
			case StandardJSONInput:
				got = "StandardJSONInput"
			case SourcesMap:
				got = "SourcesMap"
			}
			if got != tt.want {
				t.Errorf("parseSourceCode(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
