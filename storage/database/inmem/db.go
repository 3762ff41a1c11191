package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/application"
	"github.com/practicas-ubb/practicas/core/offer"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/core/user"
)

type (
	// DB is an in-memory stand-in for the postgres database, used by tests and the local demo server.
	DB struct {
		mutex   sync.RWMutex // guards tables
		txMutex sync.Mutex   // serializes transactions
		tables  tables
	}

	tables struct {
		pk           map[string]int64
		users        map[int64]user.User
		students     map[int64]user.Student // without the User
		offers       map[int64]offer.Offer
		applications map[int64]application.Application
		requests     map[int64]application.PracticeRequest
		evaluators   map[int64]practice.Evaluator
		practices    map[int64]practice.Practice // without relations
		documents    map[int64]practice.Document
		evaluations  map[int64]practice.Evaluation
	}
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() tables {
	return tables{
		pk:           make(map[string]int64),
		users:        make(map[int64]user.User),
		students:     make(map[int64]user.Student),
		offers:       make(map[int64]offer.Offer),
		applications: make(map[int64]application.Application),
		requests:     make(map[int64]application.PracticeRequest),
		evaluators:   make(map[int64]practice.Evaluator),
		practices:    make(map[int64]practice.Practice),
		documents:    make(map[int64]practice.Document),
		evaluations:  make(map[int64]practice.Evaluation),
	}
}

func (t tables) clone() tables {
	c := newTables()
	copyMap(c.pk, t.pk)
	copyMap(c.users, t.users)
	copyMap(c.students, t.students)
	copyMap(c.offers, t.offers)
	copyMap(c.applications, t.applications)
	copyMap(c.requests, t.requests)
	copyMap(c.evaluators, t.evaluators)
	copyMap(c.practices, t.practices)
	copyMap(c.documents, t.documents)
	copyMap(c.evaluations, t.evaluations)
	return c
}

func copyMap[K comparable, V any](dst, src map[K]V) {
	for k, v := range src {
		dst[k] = v
	}
}

// nextID must be called with the write lock held.
func (db *DB) nextID(table string) int64 {
	db.tables.pk[table]++
	return db.tables.pk[table]
}

// txExec marks the repository calls made inside InTx.
type txExec struct {
	core.DBExecutor
}

// lockWrite takes the write lock for a repository write. Writes made outside InTx also wait for the
// running transaction, so a rollback never drops them.
func (db *DB) lockWrite(exec []core.DBExecutor) (unlock func()) {
	if len(exec) > 0 {
		if _, ok := exec[0].(*txExec); ok {
			db.mutex.Lock()
			return db.mutex.Unlock
		}
	}
	db.txMutex.Lock()
	db.mutex.Lock()
	return func() {
		db.mutex.Unlock()
		db.txMutex.Unlock()
	}
}

// InTx runs fn with every other transaction blocked; the tables are restored when fn fails.
func (db *DB) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMutex.Lock()
	defer db.txMutex.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	db.mutex.RLock()
	snapshot := db.tables.clone()
	db.mutex.RUnlock()

	if err := fn(&txExec{}); err != nil {
		db.mutex.Lock()
		db.tables = snapshot
		db.mutex.Unlock()
		return err
	}
	return nil
}

// Reset drops every row.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.tables = newTables()
}

func (db *DB) studentSummary(studentID int64) *user.StudentSummary {
	st, ok := db.tables.students[studentID]
	if !ok {
		return nil
	}
	st.User = db.tables.users[st.UserID]
	summary := st.Summary()
	return &summary
}

// newerFirst orders rows by creation time descending, then by ID descending.
func newerFirst(ti, tj time.Time, idi, idj int64) bool {
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	return idi > idj
}
