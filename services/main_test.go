package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"habitquest/events"
	"habitquest/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB is nil when no Docker daemon is available; DB-backed tests skip.
var testDB *gorm.DB

func TestMain(m *testing.M) {
	terminate := setupDatabase()
	code := m.Run()
	terminate()
	os.Exit(code)
}

func setupDatabase() (terminate func()) {
	terminate = func() {}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("postgres container unavailable, skipping DB tests: %v", r)
			testDB = nil
		}
	}()

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:13-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "user",
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Printf("postgres container unavailable, skipping DB tests: %v", err)
		return terminate
	}
	terminate = func() { _ = container.Terminate(ctx) }

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432")
	dsn := fmt.Sprintf("host=%s port=%s user=user password=password dbname=testdb sslmode=disable", host, port.Port())

	var db *gorm.DB
	for i := 0; i < 5; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		if err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Printf("failed to connect to test database: %v", err)
		return terminate
	}
	if err := models.Migrate(db); err != nil {
		log.Printf("failed to migrate test database: %v", err)
		return terminate
	}
	testDB = db
	return terminate
}

func requireDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres test container not available")
	}
	t.Cleanup(clearDatabase)
	return testDB
}

func clearDatabase() {
	tables, _ := testDB.Migrator().GetTables()
	for _, table := range tables {
		testDB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE;", table))
	}
}

func createUser(t *testing.T, db *gorm.DB, username string, xp int64) models.User {
	t.Helper()
	u := models.User{
		ID:          uuid.NewString(),
		Username:    username,
		DisplayName: username,
		XP:          xp,
		Level:       LevelForXP(xp),
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func reloadUser(t *testing.T, db *gorm.DB, id string) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.Where("id = ?", id).First(&u).Error)
	return u
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu  sync.Mutex
	got []eventRecord
}

type eventRecord struct {
	Type   string
	UserID string
}

func (r *recordingPublisher) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, eventRecord{Type: string(e.Type), UserID: e.UserID})
}

func (r *recordingPublisher) has(typ, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.got {
		if e.Type == typ && e.UserID == userID {
			return true
		}
	}
	return false
}

type testServices struct {
	progression  *ProgressionService
	achievements *AchievementService
	habits       *HabitService
	goals        *GoalService
	friends      *FriendService
	published    *recordingPublisher
}

func newTestServices(db *gorm.DB) testServices {
	pub := &recordingPublisher{}
	progression := NewProgressionService(db, nil, pub)
	achievements := NewAchievementService(db, progression, time.UTC)
	return testServices{
		progression:  progression,
		achievements: achievements,
		habits:       NewHabitService(db, progression, achievements, time.UTC),
		goals:        NewGoalService(db, progression, achievements),
		friends:      NewFriendService(db, pub),
		published:    pub,
	}
}
