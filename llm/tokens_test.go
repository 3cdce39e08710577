package llm

import (
	"encoding/json"
	"testing"
)

func TestClampMaxTokensResidualInput(t *testing.T) {
	caps := &ModelCapabilities{MaxInputTokens: 100, MaxOutputTokens: 50}

	got := ClampMaxTokens(40, caps, 90)
	if got != 10 {
		t.Errorf("expected residual clamp to 10, got %d", got)
	}
}

func TestClampMaxTokensFloor(t *testing.T) {
	caps := &ModelCapabilities{MaxInputTokens: 100, MaxOutputTokens: 50}

	got := ClampMaxTokens(20, caps, 150)
	if got != 1 {
		t.Errorf("expected floor of 1, got %d", got)
	}
}

func TestClampMaxTokensFallbackCaps(t *testing.T) {
	got := ClampMaxTokens(100000, nil, 1000)
	if got != 7192 {
		t.Errorf("expected fallback residual 7192, got %d", got)
	}
}

func TestClampMaxTokensTotalCap(t *testing.T) {
	caps := &ModelCapabilities{MaxInputTokens: 100, MaxOutputTokens: 100, MaxTotalTokens: 120}

	got := ClampMaxTokens(100, caps, 50)
	if got != 50 {
		t.Errorf("expected total-cap clamp to 50, got %d", got)
	}
}

func TestClampMaxTokensRequestedWins(t *testing.T) {
	caps := &ModelCapabilities{MaxInputTokens: 1000, MaxOutputTokens: 500}

	got := ClampMaxTokens(100, caps, 10)
	if got != 100 {
		t.Errorf("expected requested value 100, got %d", got)
	}
}

func TestEstimateInputTokensFormula(t *testing.T) {
	messages := []Message{
		NewUserMessage("Hello"),
		NewAssistantTextMessage("World"),
	}
	systemPrompt := "You are"

	total := len(systemPrompt)
	for _, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		total += len(data)
	}
	want := total * 3 / 10

	got := EstimateInputTokens(messages, systemPrompt)
	if got != want {
		t.Errorf("expected estimate %d, got %d", want, got)
	}
}

func TestEstimateInputTokensEmpty(t *testing.T) {
	if got := EstimateInputTokens(nil, ""); got != 0 {
		t.Errorf("expected 0 for empty input, got %d", got)
	}
}
