package model

import "context"

// DefaultStubAnswer is the fixed string the stub provider returns. Tests and
// the provider-failure fallback both depend on the exact text.
const DefaultStubAnswer = "hi, this was a test you pass"

// StubProvider ignores the prompt and returns DefaultStubAnswer. It is the
// offline fallback and the test provider.
type StubProvider struct{}

func NewStubProvider() *StubProvider { return &StubProvider{} }

func (p *StubProvider) Name() string { return "stub" }

func (p *StubProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return DefaultStubAnswer, nil
}
