package studio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/animai-studio/internal/domain"
)

// ErrEmptyPrompt is returned by Submit for blank input. Nothing is sent.
var ErrEmptyPrompt = errors.New("prompt is empty")

// State of the current submission.
type State int

const (
	StateIdle State = iota
	StateSending
	StateAwaiting
	StateDisplayed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateAwaiting:
		return "awaiting-response"
	case StateDisplayed:
		return "displayed"
	case StateErrored:
		return "errored"
	default:
		return "idle"
	}
}

// API is the subset of Client used by a Session.
type API interface {
	Generate(ctx context.Context, prompt string) (Reply, error)
	SaveMessage(ctx context.Context, chatID string, m domain.Message) (domain.Message, error)
}

// Event is delivered to Session.OnEvent on every state change and on every
// progress tick while a reply is pending. Record is the entry the event
// concerns: the user's prompt while sending, the reply afterwards.
type Event struct {
	State    State
	Record   Record
	Progress Progress
}

// Session runs submissions against the studio API one at a time. A second
// Submit blocks until the first settles, so replies land in the transcript
// in submission order.
type Session struct {
	API        API
	ChatID     string // when set, prompts and replies are saved to this chat
	Transcript *Transcript
	Schedule   []Stage
	Tick       time.Duration
	OnEvent    func(Event)

	submit sync.Mutex

	mu    sync.Mutex
	state State

	now   func() time.Time
	newID func() string
}

// NewSession returns a Session with the default schedule and a one second
// tick.
func NewSession(api API, chatID string) *Session {
	return &Session{
		API:        api,
		ChatID:     chatID,
		Transcript: NewTranscript(),
		Schedule:   DefaultSchedule,
		Tick:       time.Second,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// State reports the state of the latest submission.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) emit(ev Event) {
	if s.OnEvent != nil {
		s.OnEvent(ev)
	}
}

func (s *Session) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// Submit sends prompt and waits for the reply. The returned record is the
// settled reply; on failure it is an error entry and err is non-nil.
// Persistence to the bound chat is best-effort and never fails a submission.
func (s *Session) Submit(ctx context.Context, prompt string) (Record, error) {
	if strings.TrimSpace(prompt) == "" {
		return Record{}, ErrEmptyPrompt
	}
	s.submit.Lock()
	defer s.submit.Unlock()

	now := s.now
	if now == nil {
		now = time.Now
	}
	newID := s.newID
	if newID == nil {
		newID = uuid.NewString
	}
	lg := s.logger(ctx).With().Str("chat_id", s.ChatID).Logger()

	userID := newID()
	s.Transcript.AddUser(userID, prompt)
	s.setState(StateSending)
	if rec, ok := s.Transcript.Get(userID); ok {
		s.emit(Event{State: StateSending, Record: rec})
	}
	s.persist(ctx, &lg, domain.Message{Text: prompt})

	replyID := newID()
	start := now()
	first := Evaluate(s.Schedule, 0)
	s.Transcript.AddPending(replyID, first.Caption)
	s.setState(StateAwaiting)
	if rec, ok := s.Transcript.Get(replyID); ok {
		s.emit(Event{State: StateAwaiting, Record: rec, Progress: first})
	}

	stop := s.track(replyID, start, now)
	reply, err := s.API.Generate(ctx, prompt)
	stop()

	if err != nil {
		msg := MsgRequestFailed
		var re *ReplyError
		if errors.As(err, &re) && re.Message != "" {
			msg = re.Message
		}
		lg.Warn().Err(err).Dur("elapsed", now().Sub(start)).Msg("generation failed")
		s.Transcript.Reject(replyID, msg)
		s.setState(StateErrored)
		rec, _ := s.Transcript.Get(replyID)
		s.persist(ctx, &lg, domain.Message{Text: msg, IsResponse: true, IsError: true})
		s.emit(Event{State: StateErrored, Record: rec})
		return rec, err
	}

	text := reply.Text
	if text == "" {
		text = domain.DefaultSuccessText
	}
	s.Transcript.Resolve(replyID, text, reply.VideoURL)
	s.setState(StateDisplayed)
	rec, _ := s.Transcript.Get(replyID)
	s.persist(ctx, &lg, domain.Message{Text: text, VideoURL: reply.VideoURL, IsResponse: true})
	s.emit(Event{State: StateDisplayed, Record: rec})
	return rec, nil
}

// track starts the progress ticker for the pending reply id. The returned
// func stops it and returns once no further progress event can fire.
func (s *Session) track(id string, start time.Time, now func() time.Time) func() {
	tick := s.Tick
	if tick <= 0 {
		tick = time.Second
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		t := time.NewTicker(tick)
		defer t.Stop()
		stage := 0
		for {
			select {
			case <-done:
				return
			case <-t.C:
				p := Evaluate(s.Schedule, now().Sub(start))
				if p.Stage != stage {
					stage = p.Stage
					s.Transcript.SetCaption(id, p.Caption)
				}
				rec, _ := s.Transcript.Get(id)
				s.emit(Event{State: StateAwaiting, Record: rec, Progress: p})
			}
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

func (s *Session) persist(ctx context.Context, lg *zerolog.Logger, m domain.Message) {
	if s.ChatID == "" {
		return
	}
	if _, err := s.API.SaveMessage(ctx, s.ChatID, m); err != nil {
		lg.Warn().Err(err).Bool("is_response", m.IsResponse).Msg("save message failed")
	}
}
