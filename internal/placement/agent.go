package placement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"
)

const detectionPrompt = `Find every %s in this image. Respond with only a JSON array of bounding boxes, each {"x":0.0,"y":0.0,"w":0.0,"h":0.0} with coordinates as fractions of the image size. Respond with [] if there are none.`

// VisionAnalyzer backs the VisualAnalyzer capability with a local Ollama
// vision model. It supplies face/body/text detections; it produces no
// saliency maps, so corner scoring degrades to the luminance fallback with
// model-sourced penalties.
type VisionAnalyzer struct {
	agent  *agent.DefaultAgent
	logger *slog.Logger
}

// VisionConfig points the analyzer at an Ollama instance.
type VisionConfig struct {
	BaseURL string
	Port    int
	Model   string
}

// DefaultVisionConfig targets a local Ollama with a llama3.2 vision model.
var DefaultVisionConfig = VisionConfig{
	BaseURL: "http://localhost",
	Port:    11434,
	Model:   "llama3.2-vision:11b",
}

// NewVisionAnalyzer initializes the vision agent against an Ollama
// instance.
func NewVisionAnalyzer(ctx context.Context, cfg VisionConfig, logger *slog.Logger) (*VisionAnalyzer, error) {
	// Check if Ollama is running
	endpoint := fmt.Sprintf("%s:%d/api/tags", cfg.BaseURL, cfg.Port)
	if _, err := exec.Command("curl", "-s", endpoint).Output(); err != nil {
		return nil, fmt.Errorf("ollama is not reachable: %w", err)
	}

	opts := &ollama.ProviderOpts{
		Logger:  logger,
		BaseURL: cfg.BaseURL,
		Port:    cfg.Port,
	}
	provider := ollama.NewProvider(opts)

	model := &types.Model{
		ID: cfg.Model,
	}
	provider.UseModel(ctx, model)

	agentConf := &agent.NewAgentConfig{
		Provider:     provider,
		Logger:       logger,
		SystemPrompt: "You are a visual analysis assistant. You locate regions in images and answer with JSON bounding boxes only, no prose.",
	}

	return &VisionAnalyzer{agent: agent.NewAgent(agentConf), logger: logger}, nil
}

// AttentionMap is not provided by the vision model.
func (v *VisionAnalyzer) AttentionMap(context.Context, string) (*ScoreGrid, error) {
	return nil, nil
}

// ObjectnessMap is not provided by the vision model.
func (v *VisionAnalyzer) ObjectnessMap(context.Context, string) (*ScoreGrid, error) {
	return nil, nil
}

func (v *VisionAnalyzer) DetectFaces(ctx context.Context, imagePath string) ([]NormalizedRect, error) {
	return v.detect(ctx, imagePath, "human face")
}

func (v *VisionAnalyzer) DetectBodies(ctx context.Context, imagePath string) ([]NormalizedRect, error) {
	return v.detect(ctx, imagePath, "human or animal body")
}

func (v *VisionAnalyzer) DetectText(ctx context.Context, imagePath string) ([]NormalizedRect, error) {
	return v.detect(ctx, imagePath, "region of readable text")
}

func (v *VisionAnalyzer) detect(ctx context.Context, imagePath, subject string) ([]NormalizedRect, error) {
	response := v.agent.Run(
		ctx,
		agent.WithInput(fmt.Sprintf(detectionPrompt, subject)),
		agent.WithImagePath(imagePath),
	)
	if response.Err != nil {
		return nil, response.Err
	}

	if len(response.Messages) == 0 {
		return nil, fmt.Errorf("no response messages received from model")
	}
	content := response.Messages[len(response.Messages)-1].Content

	rects, err := parseRects(content)
	if err != nil {
		if v.logger != nil {
			v.logger.Debug("unparseable detection response", "subject", subject, "content", content)
		}
		return nil, err
	}
	return rects, nil
}

// parseRects pulls a JSON array of boxes out of the model response,
// tolerating surrounding prose or code fences.
func parseRects(content string) ([]NormalizedRect, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var rects []NormalizedRect
	if err := json.Unmarshal([]byte(content[start:end+1]), &rects); err != nil {
		return nil, fmt.Errorf("failed to unmarshal detections: %w", err)
	}

	valid := rects[:0]
	for _, r := range rects {
		if r.W > 0 && r.H > 0 {
			valid = append(valid, r)
		}
	}
	return valid, nil
}
