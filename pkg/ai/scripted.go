package ai

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"
)

// Reply - заранее заданный ответ ScriptedClient.
type Reply struct {
	Text  string
	Err   error
	Delay time.Duration
}

// ScriptedClient отвечает заготовленными ответами по имени шага.
// Используется в режиме без внешнего сервиса и в тестах.
// Ответы для шага расходуются по очереди, последний повторяется.
type ScriptedClient struct {
	mu      sync.Mutex
	replies map[string][]Reply
	calls   []Prompt

	// FragmentSize - размер фрагмента в рунах для CompleteStreaming.
	FragmentSize  int
	FragmentDelay time.Duration
}

var _ StreamingClient = (*ScriptedClient)(nil)

func NewScriptedClient(replies map[string][]Reply) *ScriptedClient {
	copied := make(map[string][]Reply, len(replies))
	for k, v := range replies {
		copied[k] = append([]Reply(nil), v...)
	}
	return &ScriptedClient{replies: copied, FragmentSize: 16}
}

func (s *ScriptedClient) next(p Prompt) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, p)
	queue := s.replies[p.Name]
	if len(queue) == 0 {
		return Reply{}, fmt.Errorf("%w: no scripted reply for %q", ErrUpstreamUnavailable, p.Name)
	}
	r := queue[0]
	if len(queue) > 1 {
		s.replies[p.Name] = queue[1:]
	}
	return r, nil
}

// Calls возвращает копию всех полученных запросов.
func (s *ScriptedClient) Calls() []Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Prompt(nil), s.calls...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return classifyError(ctx.Err())
	case <-t.C:
		return nil
	}
}

func (s *ScriptedClient) Complete(ctx context.Context, p Prompt, _ Options) (string, Usage, error) {
	r, err := s.next(p)
	if err != nil {
		return "", Usage{}, err
	}
	if err := sleepCtx(ctx, r.Delay); err != nil {
		return "", Usage{}, classifyError(err)
	}
	if r.Err != nil {
		return "", Usage{}, r.Err
	}
	return r.Text, Usage{}, nil
}

func (s *ScriptedClient) CompleteStreaming(ctx context.Context, p Prompt, _ Options, onFragment func(string) error) (Usage, error) {
	r, err := s.next(p)
	if err != nil {
		return Usage{}, err
	}
	if err := sleepCtx(ctx, r.Delay); err != nil {
		return Usage{}, classifyError(err)
	}
	if r.Err != nil {
		return Usage{}, r.Err
	}

	size := s.FragmentSize
	if size <= 0 {
		size = 16
	}
	text := r.Text
	for len(text) > 0 {
		n, i := 0, 0
		for i < len(text) && n < size {
			_, w := utf8.DecodeRuneInString(text[i:])
			i += w
			n++
		}
		if onFragment != nil {
			if err := onFragment(text[:i]); err != nil {
				return Usage{}, err
			}
		}
		text = text[i:]
		if len(text) > 0 {
			if err := sleepCtx(ctx, s.FragmentDelay); err != nil {
				return Usage{}, classifyError(err)
			}
		}
	}
	return Usage{}, nil
}
