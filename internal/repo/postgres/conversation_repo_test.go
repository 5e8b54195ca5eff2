package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// newTestPool connects to POSTGRES_TEST_DSN and applies migrations. Tests
// using it are skipped when the variable is unset.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, PoolConfig{DSN: dsn, ConnectTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := Migrate(pool, MigrateOptions{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func seedProfiles(t *testing.T, pool *pgxpool.Pool, n int) []string {
	t.Helper()

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.NewString()
		if _, err := pool.Exec(context.Background(),
			`INSERT INTO profiles (id, display_name) VALUES ($1, $2)`, id, "user-"+id[:8]); err != nil {
			t.Fatalf("seed profile: %v", err)
		}
		ids = append(ids, id)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, `
DELETE FROM conversations c
WHERE EXISTS (
	SELECT 1 FROM conversation_participants cp
	WHERE cp.conversation_id = c.id AND cp.user_id = ANY($1::text[]::uuid[])
)`, ids)
		_, _ = pool.Exec(ctx, `DELETE FROM profiles WHERE id = ANY($1::text[]::uuid[])`, ids)
	})
	return ids
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	a := "11111111-1111-4111-8111-111111111111"
	b := "22222222-2222-4222-8222-222222222222"

	if pairKey(a, b) != pairKey(b, a) {
		t.Fatalf("pair key depends on argument order: %q vs %q", pairKey(a, b), pairKey(b, a))
	}
	if pairKey(a, b) == pairKey(a, a) {
		t.Fatalf("different pairs must not share a key")
	}
}

func TestCreateWithParticipantsConcurrentPairYieldsOneConversation(t *testing.T) {
	pool := newTestPool(t)
	users := seedProfiles(t, pool, 2)
	a, b := users[0], users[1]
	repo := NewConversationRepo(pool)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = make(map[string]struct{})
		created int
		errs    []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		initiator, other := a, b
		if i%2 == 1 {
			initiator, other = b, a
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			conv, isNew, err := repo.CreateWithParticipants(context.Background(), initiator, other)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids[conv.ID] = struct{}{}
			if isNew {
				created++
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("create failed: %v", errs)
	}
	if len(ids) != 1 || created != 1 {
		t.Fatalf("expected one conversation created once, got ids=%v created=%d", ids, created)
	}

	var convID string
	for id := range ids {
		convID = id
	}
	var rowsForConv int
	if err := pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM conversation_participants WHERE conversation_id = $1`, convID).Scan(&rowsForConv); err != nil {
		t.Fatalf("count participants: %v", err)
	}
	if rowsForConv != 2 {
		t.Fatalf("expected exactly two participant rows, got %d", rowsForConv)
	}

	var shared int
	if err := pool.QueryRow(context.Background(), `
SELECT COUNT(*)
FROM conversation_participants x
JOIN conversation_participants y ON y.conversation_id = x.conversation_id
WHERE x.user_id = $1 AND y.user_id = $2
`, a, b).Scan(&shared); err != nil {
		t.Fatalf("count shared conversations: %v", err)
	}
	if shared != 1 {
		t.Fatalf("expected one shared conversation, got %d", shared)
	}
}

func TestCreateWithParticipantsUnknownUserRollsBack(t *testing.T) {
	pool := newTestPool(t)
	users := seedProfiles(t, pool, 1)
	repo := NewConversationRepo(pool)

	_, _, err := repo.CreateWithParticipants(context.Background(), users[0], uuid.NewString())
	if !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}

	convs, err := repo.ListForUser(context.Background(), users[0])
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(convs) != 0 {
		t.Fatalf("failed create must leave no conversation behind, got %v", convs)
	}
}

func TestSampleQueryExposesOnlyWhitelistedColumns(t *testing.T) {
	if _, ok := sampleQuery("conversation_participants"); ok {
		t.Fatalf("participant rows must never be sampled")
	}
	query, ok := sampleQuery("profiles")
	if !ok || query != `SELECT row_to_json(t)::text FROM (SELECT id, display_name FROM profiles LIMIT $1) t` {
		t.Fatalf("unexpected profiles query: %q", query)
	}
	if isDiagnosticTable("messages") {
		t.Fatalf("messages must not be inspectable")
	}
}

func TestTableSampleHidesParticipants(t *testing.T) {
	pool := newTestPool(t)
	users := seedProfiles(t, pool, 2)
	if _, _, err := NewConversationRepo(pool).CreateWithParticipants(context.Background(), users[0], users[1]); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	repo := NewDiagnosticsRepo(pool)

	participants, err := repo.TableSample(context.Background(), "conversation_participants", 3)
	if err != nil {
		t.Fatalf("sample participants: %v", err)
	}
	if participants.Count < 2 || len(participants.Sample) != 0 {
		t.Fatalf("expected count only, got count=%d sample=%d", participants.Count, len(participants.Sample))
	}

	profiles, err := repo.TableSample(context.Background(), "profiles", 1)
	if err != nil {
		t.Fatalf("sample profiles: %v", err)
	}
	if len(profiles.Sample) != 1 {
		t.Fatalf("expected one profile sample, got %d", len(profiles.Sample))
	}
	var row map[string]any
	if err := json.Unmarshal(profiles.Sample[0], &row); err != nil {
		t.Fatalf("decode sample: %v", err)
	}
	if len(row) != 2 || row["id"] == nil {
		t.Fatalf("unexpected profile sample columns: %v", row)
	}
}
