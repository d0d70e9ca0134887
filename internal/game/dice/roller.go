package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged roll resolution.
// Every resolved roll is logged at debug level with notation, faces,
// modifier, and total.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that resolves with src and logs each roll
// to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Source returns the roller's randomness source for callers that need to
// draw bonus dice against the same source.
func (r *Roller) Source() Source {
	return r.src
}

// ResolveNotation parses text, resolves the pool, and logs the outcome.
//
// Postcondition: Returns a fully resolved Roll or a notation parse error.
func (r *Roller) ResolveNotation(text string) (Roll, error) {
	roll, err := ResolveNotation(r.src, text)
	if err != nil {
		return Roll{}, err
	}
	r.logRoll("roll resolved", roll)
	return roll, nil
}

// AppendBonusDice resolves count bonus dice against roll and logs the result.
//
// Precondition: count must be >= 0; roll must be fully resolved.
func (r *Roller) AppendBonusDice(roll Roll, count int) (Roll, []Die) {
	extended, appended := AppendBonusDice(r.src, roll, count)
	r.logger.Debug("bonus dice appended",
		zap.Int64("roll_id", roll.ID),
		zap.Int("requested", count),
		zap.Int("appended", len(appended)),
	)
	return extended, appended
}

func (r *Roller) logRoll(msg string, roll Roll) {
	faces := make([]int, 0, len(roll.Dice))
	for _, d := range roll.Dice {
		faces = append(faces, d.Face())
	}
	total, err := Score(roll)
	if err != nil {
		total = 0
	}
	r.logger.Debug(msg,
		zap.Int64("roll_id", roll.ID),
		zap.String("notation", roll.Text),
		zap.Ints("faces", faces),
		zap.Int("modifier", roll.Modifier),
		zap.Int("total", total),
	)
}
