package lobby

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
	"github.com/DoyleJ11/party-quiz-backend/internal/store"
)

const saveTimeout = 5 * time.Second

// persister writes session states in the background. Only the newest
// pending state is kept, so a slow store never holds up the lobby and the
// last write wins.
type persister struct {
	store   store.Store
	log     *zap.Logger
	pending chan engine.State
	done    chan struct{}
}

func newPersister(ctx context.Context, st store.Store, log *zap.Logger) *persister {
	p := &persister{
		store:   st,
		log:     log,
		pending: make(chan engine.State, 1),
		done:    make(chan struct{}),
	}
	go p.run(ctx)
	return p
}

// save must only be called from the lobby loop.
func (p *persister) save(s engine.State) {
	select {
	case p.pending <- s:
		return
	default:
	}
	select {
	case <-p.pending:
	default:
	}
	p.pending <- s
}

func (p *persister) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case s := <-p.pending:
			p.write(s)
		case <-ctx.Done():
			select {
			case s := <-p.pending:
				p.write(s)
			default:
			}
			return
		}
	}
}

func (p *persister) write(s engine.State) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := p.store.Save(ctx, s); err != nil {
		p.log.Warn("persist session failed", zap.Error(err))
	}
}

func (p *persister) wait() { <-p.done }
