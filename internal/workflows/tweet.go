package workflows

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
)

// Tweet verdicts.
const (
	Approved         = "approved"
	NeedsImprovement = "needs_improvement"
)

func tweetSchema(maxIterations int) *stepgraph.Schema {
	return stepgraph.MustSchema(
		stepgraph.String("topic"),
		stepgraph.String("tweet"),
		stepgraph.String("evaluation").OneOf(Approved, NeedsImprovement),
		stepgraph.String("feedback"),
		stepgraph.Int("iteration").WithDefault(1),
		stepgraph.Int("max_iteration").WithDefault(maxIterations),
		stepgraph.List("tweet_history").Accumulating(),
		stepgraph.List("feedback_history").Accumulating(),
	)
}

// Tweet compiles the generate, evaluate, optimize loop. The loop ends when the
// evaluator approves or iteration reaches max_iteration, which defaults to
// maxIterations and may be overridden by the initial record.
//
// Steps fail with llm.ErrNoClient unless a client is injected with
// llm.WithClient.
func Tweet(maxIterations int) (*stepgraph.CompiledGraph, error) {
	if maxIterations < 1 {
		return nil, fmt.Errorf("%w: max iterations must be at least 1, got %d", ErrInvalidInput, maxIterations)
	}
	return stepgraph.NewGraph(tweetSchema(maxIterations)).
		AddNode("generate", generateTweet).
		AddNode("evaluate", evaluateTweet).
		AddNode("optimize", optimizeTweet).
		AddEdge(stepgraph.START, "generate").
		AddEdge("generate", "evaluate").
		AddConditionalEdges("evaluate", routeEvaluation, stepgraph.LabelMap(map[string]string{
			Approved:         stepgraph.END,
			NeedsImprovement: "optimize",
		})).
		AddEdge("optimize", "evaluate").
		Compile(stepgraph.WithName("tweet"))
}

const generatorPrompt = "You are a funny and clever Twitter/X influencer."

const evaluatorPrompt = `You are a ruthless, no-laugh-given Twitter critic. You evaluate tweets on humor, originality, virality, and format.
Reply with JSON only: {"evaluation": "approved" | "needs_improvement", "feedback": "<one paragraph>"}.
Auto-reject tweets that are written in question-answer or setup-punchline form, or that exceed 280 characters.`

const optimizerPrompt = "You punch up tweets for virality and humor based on given feedback."

func generateTweet(ctx stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	prompt := fmt.Sprintf(`Write a short, original, and hilarious tweet on the topic: "%s".
Rules:
- Do NOT use question-answer format.
- Max 280 characters.
- Use observational humor, irony, sarcasm, or cultural references.
- Think in meme logic, punchlines, or relatable takes.
- Use simple, day to day English.`, s.String("topic"))

	tweet, err := complete(ctx, generatorPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return stepgraph.Update{"tweet": tweet, "tweet_history": tweet}, nil
}

type verdict struct {
	Evaluation string `json:"evaluation"`
	Feedback   string `json:"feedback"`
}

func evaluateTweet(ctx stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	prompt := fmt.Sprintf("Evaluate the following tweet:\n\nTweet: \"%s\"", s.String("tweet"))

	reply, err := complete(ctx, evaluatorPrompt, prompt)
	if err != nil {
		return nil, err
	}
	v, err := llm.ParseJSON[verdict](reply)
	if err != nil {
		return nil, err
	}
	v.Evaluation = strings.ToLower(strings.TrimSpace(v.Evaluation))

	// The schema rejects any evaluation outside the two verdicts.
	return stepgraph.Update{
		"evaluation":       v.Evaluation,
		"feedback":         v.Feedback,
		"feedback_history": v.Feedback,
	}, nil
}

func optimizeTweet(ctx stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	prompt := fmt.Sprintf(`Improve the tweet based on this feedback:
"%s"

Topic: "%s"
Original Tweet:
%s

Re-write it as a short, viral-worthy tweet. Avoid Q&A style and stay under 280 characters.`,
		s.String("feedback"), s.String("topic"), s.String("tweet"))

	tweet, err := complete(ctx, optimizerPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return stepgraph.Update{
		"tweet":         tweet,
		"iteration":     s.Int("iteration") + 1,
		"tweet_history": tweet,
	}, nil
}

func routeEvaluation(_ stepgraph.Context, s stepgraph.State) string {
	if s.String("evaluation") == Approved || s.Int("iteration") >= s.Int("max_iteration") {
		return Approved
	}
	return NeedsImprovement
}

// complete sends one system and user turn to the injected client and returns
// the trimmed reply.
func complete(ctx stepgraph.Context, system, user string) (string, error) {
	client := llm.FromContext(ctx)
	if client == nil {
		return "", llm.ErrNoClient
	}
	resp, err := client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{llm.UserMessage(user)},
	})
	if err != nil {
		return "", err
	}
	ctx.Logger().Debug("llm reply",
		"tokens", resp.Usage.TotalTokens,
		"duration", resp.Duration,
	)
	return strings.TrimSpace(resp.Content), nil
}
