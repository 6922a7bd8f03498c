package interactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cloutcash-matcher/internal/metrics"
)

// ErrInvalid marks interactions rejected before reaching the log.
var ErrInvalid = errors.New("invalid interaction")

// Recorder is the write path for interactions. It never touches ranking.
type Recorder struct {
	log    Log
	logger *zap.Logger
	now    func() time.Time

	// mu makes the mutual-match check and the append atomic.
	mu sync.Mutex
}

func NewRecorder(log Log, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{log: log, logger: logger, now: time.Now}
}

// Record appends the interaction. When a like or superlike meets the target's
// latest decision being a like or superlike too, a match fact is appended for
// both sides and matched is true. A pair is matched at most once.
func (r *Recorder) Record(ctx context.Context, item Interaction) (matched bool, err error) {
	item.UserID = strings.TrimSpace(item.UserID)
	item.TargetID = strings.TrimSpace(item.TargetID)
	if item.UserID == "" || item.TargetID == "" {
		return false, fmt.Errorf("%w: user id and target id are required", ErrInvalid)
	}
	if item.UserID == item.TargetID {
		return false, fmt.Errorf("%w: cannot interact with yourself", ErrInvalid)
	}
	typ, err := ParseType(string(item.Type))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	item.Type = typ
	if item.Type == Match {
		return false, fmt.Errorf("%w: match interactions are derived and cannot be recorded directly", ErrInvalid)
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	batch := []Interaction{item}
	if item.Type.Positive() {
		reciprocated, err := r.reciprocated(ctx, item)
		if err != nil {
			return false, fmt.Errorf("checking mutual interest: %w", err)
		}
		if reciprocated {
			matched = true
			batch = append(batch,
				Interaction{UserID: item.UserID, TargetID: item.TargetID, Type: Match, Timestamp: item.Timestamp},
				Interaction{UserID: item.TargetID, TargetID: item.UserID, Type: Match, Timestamp: item.Timestamp},
			)
		}
	}

	if err := r.log.Append(ctx, batch...); err != nil {
		return false, fmt.Errorf("recording interaction: %w", err)
	}

	metrics.InteractionsRecorded.WithLabelValues(string(item.Type)).Inc()
	r.logger.Info("interaction recorded",
		zap.String("user_id", item.UserID),
		zap.String("target_id", item.TargetID),
		zap.String("type", string(item.Type)),
		zap.Bool("matched", matched),
	)
	if matched {
		metrics.InteractionsRecorded.WithLabelValues(string(Match)).Add(2)
	}

	return matched, nil
}

func (r *Recorder) reciprocated(ctx context.Context, item Interaction) (bool, error) {
	matched, err := r.log.HasMatch(ctx, item.UserID, item.TargetID)
	if err != nil || matched {
		return false, err
	}
	latest, ok, err := r.log.LatestDecision(ctx, item.TargetID, item.UserID)
	if err != nil {
		return false, err
	}
	return ok && latest.Positive(), nil
}
