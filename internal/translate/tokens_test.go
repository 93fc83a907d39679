package translate

import (
	"testing"

	"github.com/user/converse/pkg/chat"
)

func TestEstimatorFallsBackForUnknownModels(t *testing.T) {
	e, err := NewEstimator("anthropic.claude-3-sonnet-20240229-v1:0")
	if err != nil {
		t.Fatal(err)
	}
	if e == nil {
		t.Fatal("expected non-nil estimator")
	}
}

func TestEstimateTokensGrowsWithInput(t *testing.T) {
	e, err := NewEstimator("anthropic.claude-3-sonnet-20240229-v1:0")
	if err != nil {
		t.Fatal(err)
	}

	short := e.EstimateTokens([]chat.Message{chat.UserMessage("hi")})
	long := e.EstimateTokens([]chat.Message{
		chat.UserMessage("What weighs more, a pound of bricks or a pound of feathers? Limit your response to 20 words."),
	})
	if short <= 0 {
		t.Errorf("short estimate = %d", short)
	}
	if long <= short {
		t.Errorf("long estimate %d should exceed short estimate %d", long, short)
	}
}
