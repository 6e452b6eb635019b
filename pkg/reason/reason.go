// Package reason turns raw detections into spoken-word guidance.
//
// The Reasoner maintains per-session statistics, gates event logging
// and memory writes behind a per-label cooldown, and narrates frames
// with a vision model, falling back to a deterministic heuristic
// sentence when inference is unavailable.
package reason

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lumenlabs/go-lumen/pkg/detect"
	"github.com/lumenlabs/go-lumen/pkg/inference"
	"github.com/lumenlabs/go-lumen/pkg/memory"
)

const narrationPromptFmt = `You are an assistive vision companion for a visually impaired user.
I will provide an image of the scene ahead and a list of objects detected by sensors.
Analyze both and give a safety-focused spoken notification in %s.
If there is relevant text in the image, read it. Describe important details
the sensors might miss, such as floor hazards or signage.
Strictly follow this format: 'There is [description]. [Navigational guidance]'.
Keep it concise, under 2 sentences. Prioritize immediate safety hazards.
If reference photos of known people were provided and one appears in the
scene, greet them by name.`

// noDetectionsContext stands in for the context block when the
// detector saw nothing this cycle.
const noDetectionsContext = "No specific objects detected by basic sensors."

const askPrompt = `You are an assistive vision companion. Answer the user's question
using the context of recent detections below. Be brief and direct.`

// EventLog records notable detections.
type EventLog interface {
	Append(eventType, label string, meta map[string]string) error
}

// Memory stores and retrieves past detection descriptions.
type Memory interface {
	Add(text string, meta map[string]string)
	Query(ctx context.Context, text string, k int) ([]memory.Result, error)
	Len() int
}

// Face is a named reference photo of a known person.
type Face struct {
	Name string
	Path string
}

// FaceSource lists the active user's reference faces.
type FaceSource interface {
	ListFaces(userID uint) ([]Face, error)
}

// Provider is the inference surface the reasoner needs. Satisfied by
// any inference.Provider.
type Provider interface {
	Vision(ctx context.Context, req *inference.VisionRequest) (*inference.VisionResponse, error)
	Chat(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error)
}

// Config holds reasoner configuration.
type Config struct {
	// Cooldown between repeat log/memory writes for the same label.
	// Default 60s.
	Cooldown time.Duration

	// VisionTimeout bounds each narration call. Default 8s.
	VisionTimeout time.Duration

	// Language the narration should be spoken in. Default "English".
	Language string

	// Faces optionally supplies reference photos for person frames.
	Faces FaceSource

	// Logger for inference failures.
	Logger *slog.Logger
}

// Reasoner narrates scenes and answers questions about recent history.
type Reasoner struct {
	provider Provider
	mem      Memory
	events   EventLog
	cfg      Config
	logger   *slog.Logger

	mu          sync.Mutex
	lastLogged  map[string]time.Time
	labelCounts map[string]int
	dangerCount int
	startedAt   time.Time

	now func() time.Time
}

// New creates a reasoner. Memory and the event log are optional; a nil
// value disables that side effect.
func New(p Provider, mem Memory, events EventLog, cfg Config) *Reasoner {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.VisionTimeout <= 0 {
		cfg.VisionTimeout = 8 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "English"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Reasoner{
		provider:    p,
		mem:         mem,
		events:      events,
		cfg:         cfg,
		logger:      cfg.Logger.With("component", "reason"),
		lastLogged:  make(map[string]time.Time),
		labelCounts: make(map[string]int),
		now:         time.Now,
	}
	r.startedAt = r.now()
	return r
}

// Process records detection statistics, logs new labels past their
// cooldown, and returns a narration for the frame. It runs on every
// detection cycle: an empty detection set still reaches the model so
// the image itself can be described. It never returns an empty string
// for a non-empty detection set.
func (r *Reasoner) Process(ctx context.Context, dets []detect.Detection, frameJPEG []byte, userID uint) string {
	r.record(dets)

	narration, err := r.narrate(ctx, dets, frameJPEG, userID)
	if err != nil {
		r.logger.Warn("vision narration failed, using heuristic", "error", err)
		return Heuristic(dets)
	}
	return narration
}

// record updates stats and applies the per-label cooldown for event
// log and memory writes.
func (r *Reasoner) record(dets []detect.Detection) {
	now := r.now()

	r.mu.Lock()
	var toLog []detect.Detection
	for _, d := range dets {
		r.labelCounts[d.Label]++
		if d.Dangerous {
			r.dangerCount++
		}
		if last, ok := r.lastLogged[d.Label]; ok && now.Sub(last) < r.cfg.Cooldown {
			continue
		}
		r.lastLogged[d.Label] = now
		toLog = append(toLog, d)
	}
	r.mu.Unlock()

	for _, d := range toLog {
		meta := map[string]string{
			"confidence": fmt.Sprintf("%.2f", d.Confidence),
			"distance":   string(d.Distance),
			"position":   string(d.Position),
		}
		if r.events != nil {
			if err := r.events.Append("detection", d.Label, meta); err != nil {
				r.logger.Warn("event log append failed", "label", d.Label, "error", err)
			}
		}
		if r.mem != nil {
			text := fmt.Sprintf("A %s %s at %s.", d.Distance, d.Label, d.Position)
			r.mem.Add(text, map[string]string{"label": d.Label})
		}
	}
}

func (r *Reasoner) narrate(ctx context.Context, dets []detect.Detection, frameJPEG []byte, userID uint) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.VisionTimeout)
	defer cancel()

	var parts []inference.Part

	if r.cfg.Faces != nil && detect.HasPerson(dets) {
		faces, err := r.cfg.Faces.ListFaces(userID)
		if err != nil {
			r.logger.Warn("list reference faces failed", "error", err)
		}
		for _, face := range faces {
			img, err := os.ReadFile(face.Path)
			if err != nil {
				r.logger.Warn("read reference face failed", "name", face.Name, "error", err)
				continue
			}
			parts = append(parts,
				inference.Part{Text: fmt.Sprintf("Reference photo of %s:", face.Name)},
				inference.Part{Image: img},
			)
		}
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, narrationPromptFmt, r.cfg.Language)
	prompt.WriteString("\n\nSensor detections:\n")
	prompt.WriteString(DetectionContext(dets))

	parts = append(parts,
		inference.Part{Text: prompt.String()},
		inference.Part{Image: frameJPEG},
	)

	resp, err := r.provider.Vision(ctx, &inference.VisionRequest{Parts: parts})
	if err != nil {
		return "", err
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return Heuristic(dets), nil
	}
	return content, nil
}

// Ask answers a question about recently seen objects using retrieved
// memory as context.
func (r *Reasoner) Ask(ctx context.Context, question string) string {
	if r.mem == nil || r.mem.Len() == 0 {
		return "I haven't seen that recently."
	}

	memoryContext := "No relevant past detections found."
	results, err := r.mem.Query(ctx, question, 5)
	if err != nil {
		r.logger.Warn("memory query failed", "error", err)
		memoryContext = "Error retrieving memory."
	} else if len(results) > 0 {
		var lines []string
		for _, res := range results {
			lines = append(lines, "- "+res.Text)
		}
		memoryContext = strings.Join(lines, "\n")
	}

	resp, err := r.provider.Chat(ctx, &inference.ChatRequest{
		Messages: []inference.Message{
			inference.NewSystemMessage(askPrompt),
			inference.NewUserMessage(fmt.Sprintf("Recent detections:\n%s\n\nQuestion: %s", memoryContext, question)),
		},
	})
	if err != nil {
		r.logger.Warn("ask chat failed", "error", err)
		return "I'm sorry, I couldn't process your question right now."
	}
	return strings.TrimSpace(resp.Message.Content)
}

// SessionStats is a snapshot of the running session counters.
type SessionStats struct {
	Duration       time.Duration
	DangerousCount int
	LabelCounts    map[string]int
}

// Stats returns a copy of the current session counters.
func (r *Reasoner) Stats() SessionStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int, len(r.labelCounts))
	for label, n := range r.labelCounts {
		counts[label] = n
	}
	return SessionStats{
		Duration:       r.now().Sub(r.startedAt),
		DangerousCount: r.dangerCount,
		LabelCounts:    counts,
	}
}

// SummarizeSession returns a spoken session recap built from the
// running counters. The counters accumulate for the process lifetime;
// the recap is a read-only snapshot.
func (r *Reasoner) SummarizeSession() string {
	r.mu.Lock()
	duration := r.now().Sub(r.startedAt)
	danger := r.dangerCount
	common := topLabels(r.labelCounts, 5)
	parts := make([]string, 0, len(common))
	for _, label := range common {
		parts = append(parts, fmt.Sprintf("%s (%d)", label, r.labelCounts[label]))
	}
	r.mu.Unlock()

	objects := "none"
	if len(parts) > 0 {
		objects = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("Session ended. Duration: %d seconds. Dangerous events: %d. Common objects: %s.",
		int(duration.Seconds()), danger, objects)
}

// topLabels returns up to n labels by descending count, ties broken
// alphabetically so output is stable.
func topLabels(counts map[string]int, n int) []string {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	if len(labels) > n {
		labels = labels[:n]
	}
	return labels
}

// DetectionContext renders detections as prompt context lines. An
// empty set yields a fixed sentence so the prompt always carries a
// sensor section.
func DetectionContext(dets []detect.Detection) string {
	if len(dets) == 0 {
		return noDetectionsContext + "\n"
	}
	var b strings.Builder
	for _, d := range dets {
		fmt.Fprintf(&b, "- %s at %s (distance: %s)", d.Label, d.Position, d.Distance)
		if d.Dangerous {
			b.WriteString(" [DANGEROUS]")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Heuristic builds a short deterministic narration without a model:
// the top three detections by priority, hazards carrying their
// distance. Example: "stair on center, near. chair on left".
func Heuristic(dets []detect.Detection) string {
	if len(dets) == 0 {
		return ""
	}

	sorted := make([]detect.Detection, len(dets))
	copy(sorted, dets)
	detect.SortByPriority(sorted)
	if len(sorted) > 3 {
		sorted = sorted[:3]
	}

	phrases := make([]string, 0, len(sorted))
	for _, d := range sorted {
		phrase := fmt.Sprintf("%s on %s", d.Label, d.Position)
		if d.Dangerous {
			phrase += fmt.Sprintf(", %s", d.Distance)
		}
		phrases = append(phrases, phrase)
	}
	return strings.Join(phrases, ". ")
}
