package membership

import (
	"log/slog"
	"sync"

	"tgaccess/entity"
	"tgaccess/lib/sl"
)

// Checker is the external membership lookup, one call per channel.
// Implemented by internal/telegram.Client.
type Checker interface {
	IsMember(chatId, userId int64) (bool, error)
}

type Verifier struct {
	checker Checker
	log     *slog.Logger
}

func New(checker Checker, log *slog.Logger) *Verifier {
	return &Verifier{
		checker: checker,
		log:     log.With(sl.Module("membership")),
	}
}

// Check runs one lookup per channel concurrently and collects every verdict
// before returning; one channel's failure never aborts the others. A failed
// or timed-out lookup counts as not joined: the gate never grants on
// uncertainty.
func (v *Verifier) Check(userId int64, channels []*entity.Channel) *entity.MembershipReport {
	joined := make([]bool, len(channels))

	var wg sync.WaitGroup
	for i, channel := range channels {
		wg.Add(1)
		go func(i int, channel *entity.Channel) {
			defer wg.Done()
			ok, err := v.checker.IsMember(channel.ChannelId, userId)
			if err != nil {
				v.log.With(
					slog.String("channel", channel.Name),
					slog.Int64("user_id", userId),
				).Warn("membership lookup failed", sl.Err(err))
				return
			}
			joined[i] = ok
		}(i, channel)
	}
	wg.Wait()

	report := &entity.MembershipReport{AllJoined: true}
	for i, channel := range channels {
		if !joined[i] {
			report.AllJoined = false
			report.NotJoined = append(report.NotJoined, channel.Name)
		}
	}
	return report
}
