package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/llm"
	"github.com/tbourn/go-garage-backend/internal/repo"
	"github.com/tbourn/go-garage-backend/internal/research"
	"github.com/tbourn/go-garage-backend/internal/retail"
)

// stubResponder records its input and replays a canned output.
type stubResponder struct {
	mu     sync.Mutex
	inputs []research.Input
	out    *research.Output
	err    error
}

func (s *stubResponder) Respond(_ context.Context, in research.Input) (*research.Output, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, in)
	s.mu.Unlock()
	return s.out, s.err
}

func (s *stubResponder) last(t *testing.T) research.Input {
	t.Helper()
	if len(s.inputs) == 0 {
		t.Fatalf("responder never called")
	}
	return s.inputs[len(s.inputs)-1]
}

func TestChat_ValidatesInput(t *testing.T) {
	s := NewAssistantService(nil, &stubResponder{})
	s.MaxMessageRunes = 5

	cases := []struct {
		in   ChatInput
		want error
	}{
		{ChatInput{Message: "  ", CollectionID: "c"}, ErrEmptyMessage},
		{ChatInput{Message: "hi", CollectionID: " "}, ErrMissingCollection},
		{ChatInput{Message: "toolong", CollectionID: "c"}, ErrTooLong},
	}
	for _, tc := range cases {
		if _, err := s.Chat(context.Background(), "u1", tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("Chat(%+v) err=%v, want %v", tc.in, err, tc.want)
		}
	}
}

func TestChat_UnknownOrForeignSession(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	other, err := repo.CreateChat(ctx, db, "someone-else", "col", "Theirs")
	if err != nil {
		t.Fatalf("seed chat: %v", err)
	}

	s := NewAssistantService(db, &stubResponder{out: &research.Output{Reply: "x"}})
	for _, id := range []string{"missing", other.ID} {
		_, err := s.Chat(ctx, "u1", ChatInput{Message: "hi", SessionID: id, CollectionID: "col"})
		if !errors.Is(err, ErrChatNotFound) {
			t.Fatalf("session %q: err=%v", id, err)
		}
	}
}

func TestChat_NewSession_PersistsAndDispatchesTitle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustVehicle(t, db, domain.Vehicle{CollectionID: "col", UserID: "u1", Type: "motorcycle", Year: 2019, Make: "Honda", Model: "CBR650F"})
	mustVehicle(t, db, domain.Vehicle{CollectionID: "other", UserID: "u1", Year: 1967, Make: "Ford", Model: "Mustang"})

	next := research.BeginDiscovery(research.State{}, "battery", "battery", &research.VehicleContext{Year: 2019, Make: "Honda", Model: "CBR650F"}, &research.DiscoveryResult{Summary: "s"})
	stub := &stubResponder{out: &research.Output{
		Reply:    "Here are some battery options.",
		Metadata: &research.Metadata{Type: research.MetadataDiscovery, ResearchState: next},
		State:    next,
		Path:     research.PathDiscovery,
	}}
	titles := &recordingDispatcher{}
	s := NewAssistantService(db, stub)
	s.Titles = titles

	out, err := s.Chat(ctx, "u1", ChatInput{Message: "What battery should I get for my Honda?", CollectionID: "col"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !out.Created || out.SessionID == "" || out.AssistantMessageID == "" {
		t.Fatalf("output = %+v", out)
	}
	if out.Metadata == nil || out.Metadata.Type != research.MetadataDiscovery {
		t.Fatalf("metadata = %+v", out.Metadata)
	}

	in := stub.last(t)
	if len(in.Vehicles) != 1 || in.Vehicles[0].Model != "CBR650F" {
		t.Fatalf("vehicles not filtered by collection: %+v", in.Vehicles)
	}
	if len(in.History) != 0 || in.State.Status != research.StatusIdle {
		t.Fatalf("fresh session input = %+v", in)
	}
	if !strings.Contains(in.CollectionSummary, "2019 Honda CBR650F") {
		t.Fatalf("summary = %q", in.CollectionSummary)
	}

	chat, err := repo.GetChat(ctx, db, out.SessionID, "u1")
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if chat.Title != "Battery Honda" || chat.CollectionID != "col" {
		t.Fatalf("chat = %+v", chat)
	}

	msgs, err := repo.ListMessages(ctx, db, out.SessionID, 10)
	if err != nil || len(msgs) != 2 {
		t.Fatalf("messages = %+v, %v", msgs, err)
	}
	if msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant {
		t.Fatalf("order = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[0].Metadata != nil || !strings.Contains(string(msgs[1].Metadata), `"researchState"`) {
		t.Fatalf("metadata user=%s assistant=%s", msgs[0].Metadata, msgs[1].Metadata)
	}

	rs, err := repo.GetResearchSession(ctx, db, out.SessionID)
	if err != nil || rs.Status != string(research.StatusAwaitingRefinement) {
		t.Fatalf("research session = %+v, %v", rs, err)
	}

	if titles.count() != 1 || titles.jobs[0].Initial != "Battery Honda" || titles.jobs[0].Reply != out.Message {
		t.Fatalf("title jobs = %+v", titles.jobs)
	}

	// A follow-up in the same session restores state and history but does
	// not dispatch another title job.
	if _, err := s.Chat(ctx, "u1", ChatInput{Message: "lithium please", SessionID: out.SessionID, CollectionID: "col"}); err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	in = stub.last(t)
	if !in.State.AwaitingRefinement() || in.State.ProductCategory != "battery" {
		t.Fatalf("state not restored: %+v", in.State)
	}
	if len(in.History) != 2 || in.History[0].Role != domain.RoleUser || in.History[1].Content != out.Message {
		t.Fatalf("history = %+v", in.History)
	}
	if titles.count() != 1 {
		t.Fatalf("title dispatched for an existing session")
	}
}

func TestChat_ResponderFailure_UsesFallbackAndKeepsState(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	chat, _ := repo.CreateChat(ctx, db, "u1", "col", "Batteries")
	st := research.BeginDiscovery(research.State{}, "battery", "battery", nil, &research.DiscoveryResult{})
	raw, _ := json.Marshal(st)
	if err := repo.SaveResearchSession(ctx, db, &domain.ResearchSession{ChatID: chat.ID, UserID: "u1", Status: string(st.Status), State: raw}); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	s := NewAssistantService(db, &stubResponder{err: errors.New("model down")})
	out, err := s.Chat(ctx, "u1", ChatInput{Message: "agm", SessionID: chat.ID, CollectionID: "col"})
	if err != nil {
		t.Fatalf("Chat must not fail on responder errors: %v", err)
	}
	if out.Message != FallbackReply || out.Metadata != nil {
		t.Fatalf("out = %+v", out)
	}

	msgs, _ := repo.ListMessages(ctx, db, chat.ID, 10)
	if len(msgs) != 2 || msgs[1].Content != FallbackReply {
		t.Fatalf("fallback not persisted: %+v", msgs)
	}
	rs, _ := repo.GetResearchSession(ctx, db, chat.ID)
	if rs.Status != string(research.StatusAwaitingRefinement) {
		t.Fatalf("state lost on failure: %s", rs.Status)
	}
}

func TestChat_ResumesFromLegacyMetadata(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	chat, _ := repo.CreateChat(ctx, db, "u1", "col", "Old")
	legacy := `{"type":"discovery","researchState":{"phase":"discovery","productCategory":"tires"}}`
	if _, err := repo.CreateMessage(ctx, db, chat.ID, domain.RoleAssistant, "tire options", []byte(legacy)); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	stub := &stubResponder{out: &research.Output{Reply: "ok"}}
	s := NewAssistantService(db, stub)
	if _, err := s.Chat(ctx, "u1", ChatInput{Message: "all season", SessionID: chat.ID, CollectionID: "col"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	st := stub.last(t).State
	if st.Status != research.StatusAwaitingRefinement || st.ProductCategory != "tires" {
		t.Fatalf("legacy state = %+v", st)
	}
}

func TestChat_HistoryLimitKeepsNewest(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	chat, _ := repo.CreateChat(ctx, db, "u1", "col", "Long")
	for i := 0; i < 6; i++ {
		if _, err := repo.CreateMessage(ctx, db, chat.ID, domain.RoleUser, string(rune('a'+i)), nil); err != nil {
			t.Fatalf("seed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	stub := &stubResponder{out: &research.Output{Reply: "ok"}}
	s := NewAssistantService(db, stub)
	s.HistoryLimit = 3
	if _, err := s.Chat(ctx, "u1", ChatInput{Message: "next", SessionID: chat.ID, CollectionID: "col"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	h := stub.last(t).History
	if len(h) != 3 || h[0].Content != "d" || h[2].Content != "f" {
		t.Fatalf("history = %+v", h)
	}
}

// scriptedGen answers discovery and ranking prompts with JSON.
func scriptedGen() llm.Generator {
	return llm.GeneratorFunc(func(_ context.Context, req llm.Request) (*llm.Response, error) {
		switch {
		case strings.Contains(req.Prompt, "Research the product category"):
			return &llm.Response{Text: `{"summary":"Two chemistries fit.","options":[{"name":"Lithium"},{"name":"AGM"}],"questions":["Budget?"]}`}, nil
		case strings.Contains(req.Prompt, "Rank the three best"):
			return &llm.Response{Text: `{"summary":"Lithium it is.","recommendations":[{"rank":1,"name":"Shorai LFX","reasoning":"Light."}]}`}, nil
		default:
			return &llm.Response{Text: "Nice bike!"}, nil
		}
	})
}

func TestChat_EndToEnd_ResearchFlowAcrossTurns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewAssistantService(db, research.NewOrchestrator(scriptedGen(), retail.NewRegistry(0)))

	first, err := s.Chat(ctx, "u1", ChatInput{Message: "My 2019 Honda CBR650F", CollectionID: "col"})
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if first.Metadata != nil {
		t.Fatalf("plain chat must not carry metadata")
	}

	second, err := s.Chat(ctx, "u1", ChatInput{Message: "What battery should I get?", SessionID: first.SessionID, CollectionID: "col"})
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if second.Metadata == nil || second.Metadata.Type != research.MetadataDiscovery {
		t.Fatalf("turn 2 metadata = %+v", second.Metadata)
	}
	v := second.Metadata.VehicleContext
	if v == nil || v.Year != 2019 || v.Make != "Honda" || v.Model != "CBR650F" {
		t.Fatalf("vehicle not bound from history: %+v", v)
	}

	third, err := s.Chat(ctx, "u1", ChatInput{Message: "lithium, under $200", SessionID: first.SessionID, CollectionID: "col"})
	if err != nil {
		t.Fatalf("turn 3: %v", err)
	}
	if third.Metadata == nil || third.Metadata.Type != research.MetadataProductResearch {
		t.Fatalf("turn 3 metadata = %+v", third.Metadata)
	}
	if third.Metadata.VehicleContext == nil || third.Metadata.VehicleContext.Model != "CBR650F" {
		t.Fatalf("vehicle not carried into product finding: %+v", third.Metadata.VehicleContext)
	}

	rs, err := repo.GetResearchSession(ctx, db, first.SessionID)
	if err != nil || rs.Status != string(research.StatusCompleted) {
		t.Fatalf("final state = %+v, %v", rs, err)
	}
}
