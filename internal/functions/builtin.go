package functions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kolosalai/agentruntime/internal/agentdata"
	"github.com/kolosalai/agentruntime/internal/embedding"
	"github.com/kolosalai/agentruntime/internal/memory/hybrid"
)

// Deps bundles the dependencies the builtin function families need. It is
// constructed once per agent and passed to the factory functions below —
// never held as package-level state (§4.1, §9).
type Deps struct {
	Logger           *slog.Logger
	HTTPClient       *http.Client
	EmbeddingProvider embedding.Provider
	// LLMCall invokes the external inference backend; nil means no backend
	// is configured and the llm_call function always fails DependencyError-style.
	LLMCall func(ctx context.Context, prompt string) (string, error)
	// HybridStore backs the retrieval builtin with the FTS5+vector hybrid
	// search store; nil means no external vector store is configured and
	// retrieval always fails DependencyError-style.
	HybridStore hybrid.MemoryBackend
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// RegisterBuiltins registers every builtin Function family on reg, wiring
// them to deps. Agents select which names to activate via AgentConfig.Functions;
// registering the full set here is harmless since lookup is by name.
func RegisterBuiltins(reg *Registry, deps Deps) {
	reg.Register(newEchoFunction())
	reg.Register(newArithmeticFunction())
	reg.Register(newDelayFunction())
	reg.Register(newTextAnalysisFunction())
	reg.Register(newDataTransformFunction())
	reg.Register(newLLMCallFunction(deps))
	reg.Register(newHTTPCallFunction(deps))
	reg.Register(newDocumentParseFunction(deps))
	reg.Register(newRetrievalFunction(deps))
	reg.Register(newEmbeddingFunction(deps))
}

// --- echo -------------------------------------------------------------

type echoFunction struct{}

func newEchoFunction() *echoFunction { return &echoFunction{} }

func (echoFunction) Name() string        { return "echo" }
func (echoFunction) Description() string { return "Returns the given text parameter unchanged." }
func (echoFunction) Category() string    { return "builtin" }
func (echoFunction) Schema() Schema {
	return Schema{
		Name:        "echo",
		Description: "Returns the given text parameter unchanged.",
		Category:    "builtin",
		Parameters: []Parameter{
			{Name: "text", Type: TypeString, Required: true},
		},
	}
}

func (echoFunction) Execute(_ context.Context, params agentdata.Data) Result {
	start := time.Now()
	text, _ := params["text"].AsString()
	return OK(agentdata.Object(agentdata.Data{"text": agentdata.String(text)}), start)
}

// --- arithmetic ---------------------------------------------------------

type arithmeticFunction struct{}

func newArithmeticFunction() *arithmeticFunction { return &arithmeticFunction{} }

func (arithmeticFunction) Name() string        { return "arithmetic" }
func (arithmeticFunction) Description() string { return "Performs add/sub/mul/div on two numbers." }
func (arithmeticFunction) Category() string    { return "builtin" }
func (arithmeticFunction) Schema() Schema {
	return Schema{
		Name:        "arithmetic",
		Description: "Performs add/sub/mul/div on two numbers.",
		Category:    "builtin",
		Parameters: []Parameter{
			{Name: "op", Type: TypeString, Required: true, Enum: []string{"add", "sub", "mul", "div"}},
			{Name: "x", Type: TypeFloat, Required: true},
			{Name: "y", Type: TypeFloat, Required: true},
		},
	}
}

func (arithmeticFunction) Execute(_ context.Context, params agentdata.Data) Result {
	start := time.Now()
	op, _ := params["op"].AsString()
	x, _ := params["x"].AsFloat()
	y, _ := params["y"].AsFloat()

	var result float64
	switch op {
	case "add":
		result = x + y
	case "sub":
		result = x - y
	case "mul":
		result = x * y
	case "div":
		if y == 0 {
			return Fail("division by zero", start)
		}
		result = x / y
	default:
		return Fail(fmt.Sprintf("unsupported op %q", op), start)
	}

	return OK(agentdata.Object(agentdata.Data{"result": agentdata.Float(result)}), start)
}

// --- delay ----------------------------------------------------------

type delayFunction struct{}

func newDelayFunction() *delayFunction { return &delayFunction{} }

func (delayFunction) Name() string        { return "delay" }
func (delayFunction) Description() string { return "Sleeps for the given number of milliseconds, honoring cancellation." }
func (delayFunction) Category() string    { return "builtin" }
func (delayFunction) Schema() Schema {
	return Schema{
		Name:        "delay",
		Description: "Sleeps for the given number of milliseconds, honoring cancellation.",
		Category:    "builtin",
		Parameters: []Parameter{
			{Name: "duration_ms", Type: TypeInt, Required: true},
		},
	}
}

func (delayFunction) Execute(ctx context.Context, params agentdata.Data) Result {
	start := time.Now()
	ms, _ := params["duration_ms"].AsInt()
	if ms < 0 {
		return Fail("duration_ms must be non-negative", start)
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return OK(agentdata.Object(agentdata.Data{"slept_ms": agentdata.Int(ms)}), start)
	case <-ctx.Done():
		return Fail("delay cancelled: "+ctx.Err().Error(), start)
	}
}

// --- text analysis -------------------------------------------------

type textAnalysisFunction struct{}

func newTextAnalysisFunction() *textAnalysisFunction { return &textAnalysisFunction{} }

func (textAnalysisFunction) Name() string        { return "text_analysis" }
func (textAnalysisFunction) Description() string { return "Computes word/char counts and a naive sentiment score for text." }
func (textAnalysisFunction) Category() string    { return "analysis" }
func (textAnalysisFunction) Schema() Schema {
	return Schema{
		Name:        "text_analysis",
		Description: "Computes word/char counts and a naive sentiment score for text.",
		Category:    "analysis",
		Parameters: []Parameter{
			{Name: "text", Type: TypeString, Required: true},
		},
	}
}

var positiveWords = map[string]bool{"good": true, "great": true, "excellent": true, "happy": true, "love": true}
var negativeWords = map[string]bool{"bad": true, "terrible": true, "awful": true, "sad": true, "hate": true}

func (textAnalysisFunction) Execute(_ context.Context, params agentdata.Data) Result {
	start := time.Now()
	text, _ := params["text"].AsString()

	words := strings.Fields(text)
	var score float64
	for _, w := range words {
		lw := strings.ToLower(strings.Trim(w, ".,!?;:"))
		if positiveWords[lw] {
			score++
		} else if negativeWords[lw] {
			score--
		}
	}

	return OK(agentdata.Object(agentdata.Data{
		"word_count": agentdata.Int(int64(len(words))),
		"char_count": agentdata.Int(int64(len(text))),
		"sentiment":  agentdata.Float(score),
	}), start)
}

// --- data transform --------------------------------------------------

type dataTransformFunction struct{}

func newDataTransformFunction() *dataTransformFunction { return &dataTransformFunction{} }

func (dataTransformFunction) Name() string        { return "data_transform" }
func (dataTransformFunction) Description() string { return "Applies a named transform (upper/lower/reverse/trim) to a string array." }
func (dataTransformFunction) Category() string    { return "data" }
func (dataTransformFunction) Schema() Schema {
	return Schema{
		Name:        "data_transform",
		Description: "Applies a named transform (upper/lower/reverse/trim) to a string array.",
		Category:    "data",
		Parameters: []Parameter{
			{Name: "items", Type: TypeArray, Required: true},
			{Name: "op", Type: TypeString, Required: true, Enum: []string{"upper", "lower", "reverse", "trim"}},
		},
	}
}

func (dataTransformFunction) Execute(_ context.Context, params agentdata.Data) Result {
	start := time.Now()
	items, _ := params["items"].AsStringArray()
	op, _ := params["op"].AsString()

	out := make([]string, len(items))
	for i, item := range items {
		switch op {
		case "upper":
			out[i] = strings.ToUpper(item)
		case "lower":
			out[i] = strings.ToLower(item)
		case "trim":
			out[i] = strings.TrimSpace(item)
		case "reverse":
			runes := []rune(item)
			for l, r := 0, len(runes)-1; l < r; l, r = l+1, r-1 {
				runes[l], runes[r] = runes[r], runes[l]
			}
			out[i] = string(runes)
		default:
			return Fail(fmt.Sprintf("unsupported op %q", op), start)
		}
	}

	return OK(agentdata.Object(agentdata.Data{"items": agentdata.StringArray(out)}), start)
}

// --- llm call (external inference backend contract) -------------------

type llmCallFunction struct {
	deps Deps
}

func newLLMCallFunction(deps Deps) *llmCallFunction { return &llmCallFunction{deps: deps} }

func (llmCallFunction) Name() string        { return "llm_call" }
func (llmCallFunction) Description() string { return "Invokes the configured external inference backend with a prompt." }
func (llmCallFunction) Category() string    { return "inference" }
func (llmCallFunction) Schema() Schema {
	return Schema{
		Name:        "llm_call",
		Description: "Invokes the configured external inference backend with a prompt.",
		Category:    "inference",
		Parameters: []Parameter{
			{Name: "prompt", Type: TypeString, Required: true},
		},
	}
}

// EstimateCost returns a crude proxy for expected backend cost: longer
// prompts cost more. This is the only built-in with a cost estimate since
// it is the only one that crosses into the (opaque, potentially metered)
// external inference backend.
func (f *llmCallFunction) EstimateCost(params agentdata.Data) float64 {
	prompt, _ := params["prompt"].AsString()
	return float64(len(strings.Fields(prompt)))
}

func (f *llmCallFunction) Execute(ctx context.Context, params agentdata.Data) Result {
	start := time.Now()
	prompt, _ := params["prompt"].AsString()

	if f.deps.LLMCall == nil {
		return Fail("dependency error: no inference backend configured", start)
	}

	reply, err := f.deps.LLMCall(ctx, prompt)
	if err != nil {
		return Fail("dependency error: "+err.Error(), start)
	}

	return OK(agentdata.Object(agentdata.Data{"reply": agentdata.String(reply)}), start)
}

// --- http call ---------------------------------------------------------

type httpCallFunction struct {
	deps Deps
}

func newHTTPCallFunction(deps Deps) *httpCallFunction { return &httpCallFunction{deps: deps} }

func (httpCallFunction) Name() string        { return "http_call" }
func (httpCallFunction) Description() string { return "Performs an HTTP GET against an external API and returns status+body." }
func (httpCallFunction) Category() string    { return "integration" }
func (httpCallFunction) Schema() Schema {
	return Schema{
		Name:        "http_call",
		Description: "Performs an HTTP GET against an external API and returns status+body.",
		Category:    "integration",
		Parameters: []Parameter{
			{Name: "url", Type: TypeString, Required: true},
		},
	}
}

func (f *httpCallFunction) Execute(ctx context.Context, params agentdata.Data) Result {
	start := time.Now()
	url, _ := params["url"].AsString()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Fail("invalid request: "+err.Error(), start)
	}

	resp, err := f.deps.httpClient().Do(req)
	if err != nil {
		return Fail("dependency error: "+err.Error(), start)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Fail("dependency error reading body: "+err.Error(), start)
	}

	return OK(agentdata.Object(agentdata.Data{
		"status": agentdata.Int(int64(resp.StatusCode)),
		"body":   agentdata.String(string(body)),
	}), start)
}

// --- document parse (delegated to external parser) ---------------------

type documentParseFunction struct {
	deps Deps
}

func newDocumentParseFunction(deps Deps) *documentParseFunction { return &documentParseFunction{deps: deps} }

func (documentParseFunction) Name() string        { return "document_parse" }
func (documentParseFunction) Description() string { return "Delegates PDF/DOCX parsing to an external document parser; contract-only." }
func (documentParseFunction) Category() string    { return "document" }
func (documentParseFunction) Schema() Schema {
	return Schema{
		Name:        "document_parse",
		Description: "Delegates PDF/DOCX parsing to an external document parser; contract-only.",
		Category:    "document",
		Parameters: []Parameter{
			{Name: "path", Type: TypeString, Required: true},
		},
	}
}

func (f *documentParseFunction) Execute(_ context.Context, params agentdata.Data) Result {
	start := time.Now()
	path, _ := params["path"].AsString()
	f.deps.logger().Debug("document_parse invoked with no parser backend wired", "path", path)
	return Fail("dependency error: no document parser backend configured", start)
}

// --- retrieval (delegated to external vector store) ----------------------

type retrievalFunction struct {
	deps Deps
}

func newRetrievalFunction(deps Deps) *retrievalFunction { return &retrievalFunction{deps: deps} }

func (retrievalFunction) Name() string        { return "retrieval" }
func (retrievalFunction) Description() string { return "Searches the hybrid FTS5+vector memory store and returns the top matching chunks." }
func (retrievalFunction) Category() string    { return "retrieval" }
func (retrievalFunction) Schema() Schema {
	return Schema{
		Name:        "retrieval",
		Description: "Searches the hybrid FTS5+vector memory store and returns the top matching chunks.",
		Category:    "retrieval",
		Parameters: []Parameter{
			{Name: "query", Type: TypeString, Required: true},
			{Name: "top_k", Type: TypeInt, Required: false, Default: "5"},
		},
	}
}

func (f *retrievalFunction) Execute(ctx context.Context, params agentdata.Data) Result {
	start := time.Now()
	query, _ := params["query"].AsString()

	if f.deps.HybridStore == nil {
		f.deps.logger().Debug("retrieval invoked with no hybrid store wired", "query", query)
		return Fail("dependency error: no external vector store configured", start)
	}

	topK := 5
	if v, ok := params["top_k"]; ok {
		if n, err := v.AsInt(); err == nil && n > 0 {
			topK = int(n)
		}
	}

	results, err := f.deps.HybridStore.Search(ctx, query, topK)
	if err != nil {
		return Fail("retrieval backend error: "+err.Error(), start)
	}

	snippets := make([]string, len(results))
	for i, r := range results {
		snippets[i] = r.Text
	}

	return OK(agentdata.Object(agentdata.Data{
		"results": agentdata.StringArray(snippets),
		"count":   agentdata.Int(int64(len(results))),
	}), start)
}

// --- embedding generation -------------------------------------------

type embeddingFunction struct {
	deps Deps
}

func newEmbeddingFunction(deps Deps) *embeddingFunction { return &embeddingFunction{deps: deps} }

func (embeddingFunction) Name() string        { return "generate_embedding" }
func (embeddingFunction) Description() string { return "Produces the embedding vector for the given text using the agent's embedding provider." }
func (embeddingFunction) Category() string    { return "retrieval" }
func (embeddingFunction) Schema() Schema {
	return Schema{
		Name:        "generate_embedding",
		Description: "Produces the embedding vector for the given text using the agent's embedding provider.",
		Category:    "retrieval",
		Parameters: []Parameter{
			{Name: "text", Type: TypeString, Required: true},
		},
	}
}

func (f *embeddingFunction) Execute(ctx context.Context, params agentdata.Data) Result {
	start := time.Now()
	text, _ := params["text"].AsString()

	if f.deps.EmbeddingProvider == nil {
		return Fail("dependency error: no embedding provider configured", start)
	}

	vec, err := f.deps.EmbeddingProvider.Embed(ctx, text)
	if err != nil {
		return Fail("dependency error: "+err.Error(), start)
	}

	strs := make([]string, len(vec))
	for i, v := range vec {
		strs[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}

	return OK(agentdata.Object(agentdata.Data{"vector": agentdata.StringArray(strs)}), start)
}
