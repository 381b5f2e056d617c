package narrative

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/JexSrs/go-ollama"
	"github.com/sirupsen/logrus"

	"github.com/avaloki108/mush-audit-sub001/internal/config"
	"github.com/avaloki108/mush-audit-sub001/internal/logging"
	"github.com/avaloki108/mush-audit-sub001/internal/report"
)

const systemMessage = "You are a smart contract security reviewer. Summarize the findings below for an engineering " +
	"audience: group related issues, say which to fix first, and do not invent findings that are not listed."

// DefaultMaxPromptLength bounds the prompt sent to the model, in characters.
const DefaultMaxPromptLength = 12000

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// OllamaGenerator calls a local ollama server.
type OllamaGenerator struct {
	client *ollama.Ollama
	model  string
}

func NewOllama(cfg config.NarrativeConfig) (*OllamaGenerator, error) {
	host, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("no ollama model configured")
	}
	return &OllamaGenerator{client: ollama.New(*host), model: cfg.Model}, nil
}

func (g *OllamaGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res, err := g.client.Generate(
		g.client.Generate.WithModel(g.model),
		g.client.Generate.WithSystem(system),
		g.client.Generate.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if !res.Done {
		return "", fmt.Errorf("ollama generate: response not finished")
	}
	if res.Response == "" {
		return "", fmt.Errorf("ollama generate: empty response")
	}
	return strings.TrimSpace(strings.Trim(res.Response, "`")), nil
}

// Narrator writes a prose summary of a finished report.
type Narrator struct {
	gen       Generator
	maxPrompt int
	log       *logrus.Entry
}

func New(gen Generator, maxPrompt int) *Narrator {
	if maxPrompt <= 0 {
		maxPrompt = DefaultMaxPromptLength
	}
	return &Narrator{gen: gen, maxPrompt: maxPrompt, log: logging.For("narrative")}
}

// Summarize asks the generator for a summary. Reports without findings are
// summarized locally.
func (n *Narrator) Summarize(ctx context.Context, r *report.Report) (string, error) {
	if len(r.Findings()) == 0 {
		return "No findings were reported.", nil
	}
	prompt := BuildPrompt(r)
	if utf8.RuneCountInString(prompt) > n.maxPrompt {
		n.log.Warnf("prompt truncated to %d characters", n.maxPrompt)
		prompt = truncate(prompt, n.maxPrompt)
	}
	return n.gen.Generate(ctx, systemMessage, prompt)
}

// BuildPrompt lists the report in ranked order.
func BuildPrompt(r *report.Report) string {
	var b strings.Builder
	sum := r.Summary()
	fmt.Fprintf(&b, "Risk score: %.1f/100. Findings: %d.\n\n", r.RiskScore(), sum.TotalFindings)
	for i, f := range r.Findings() {
		loc := f.Primary()
		fmt.Fprintf(&b, "%d. [%s/%s] %s (%s.%s line %d)\n", i+1, f.Severity, f.Confidence, f.Title, loc.Contract, loc.Function, loc.Line)
		if f.Description != "" {
			fmt.Fprintf(&b, "   %s\n", f.Description)
		}
		if f.EconomicImpact != "" {
			fmt.Fprintf(&b, "   Economic impact: %s\n", f.EconomicImpact)
		}
	}
	if d := r.Diagnostics(); len(d) > 0 {
		fmt.Fprintf(&b, "\nThe analysis was incomplete in %d places (unparsed units, unresolved dependencies or truncated call chains).\n", len(d))
	}
	return b.String()
}

func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
