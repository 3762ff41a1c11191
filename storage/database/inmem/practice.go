package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/practice"
)

type practiceRepository struct {
	db *DB
}

var _ practice.Repository = (*practiceRepository)(nil)

func NewPracticeRepository(db *DB) practice.Repository {
	return &practiceRepository{db: db}
}

// load fills in the student and evaluator; it must be called with the lock held.
func (repo *practiceRepository) load(p practice.Practice) practice.Practice {
	p.Student = repo.db.studentSummary(p.StudentID)
	if p.EvaluatorID.Valid {
		if ev, ok := repo.db.tables.evaluators[p.EvaluatorID.Int64]; ok {
			p.Evaluator = &ev
		}
	}
	return p
}

func (repo *practiceRepository) CreatePractice(_ context.Context, p practice.Practice, exec ...core.DBExecutor) (practice.Practice, error) {
	defer repo.db.lockWrite(exec)()

	p.ID = repo.db.nextID("practices")
	p.Student, p.Evaluator, p.Documents, p.Evaluations = nil, nil, nil, nil
	repo.db.tables.practices[p.ID] = p
	return p, nil
}

func (repo *practiceRepository) GetPractice(_ context.Context, id int64, _ ...core.DBExecutor) (practice.Practice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	p, ok := repo.db.tables.practices[id]
	if !ok {
		return practice.Practice{}, practice.ErrNotFound
	}
	p = repo.load(p)

	p.Documents = make([]practice.Document, 0)
	for _, doc := range repo.db.tables.documents {
		if doc.PracticeID == id {
			p.Documents = append(p.Documents, doc)
		}
	}
	sort.Slice(p.Documents, func(i, j int) bool {
		return !newerFirst(p.Documents[i].CreatedAt, p.Documents[j].CreatedAt, p.Documents[i].ID, p.Documents[j].ID)
	})

	p.Evaluations = make([]practice.Evaluation, 0)
	for _, ev := range repo.db.tables.evaluations {
		if ev.PracticeID == id {
			p.Evaluations = append(p.Evaluations, ev)
		}
	}
	sort.Slice(p.Evaluations, func(i, j int) bool {
		return !newerFirst(p.Evaluations[i].CreatedAt, p.Evaluations[j].CreatedAt, p.Evaluations[i].ID, p.Evaluations[j].ID)
	})
	return p, nil
}

// LockPractice relies on InTx serializing transactions.
func (repo *practiceRepository) LockPractice(_ context.Context, id int64, _ ...core.DBExecutor) (practice.Status, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.tables.practices[id]; ok {
		return p.Status, nil
	}
	return "", practice.ErrNotFound
}

func (repo *practiceRepository) QueryPractices(_ context.Context, filter practice.QueryFilter, _ ...core.DBExecutor) ([]practice.Practice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	practices := make([]practice.Practice, 0)
	for _, p := range repo.db.tables.practices {
		if (filter.Status != "" && p.Status != filter.Status) ||
			(filter.StudentID > 0 && p.StudentID != filter.StudentID) ||
			(filter.EvaluatorID > 0 && p.EvaluatorID.Int64 != filter.EvaluatorID) {
			continue
		}
		practices = append(practices, repo.load(p))
	}
	sort.Slice(practices, func(i, j int) bool {
		return newerFirst(practices[i].CreatedAt, practices[j].CreatedAt, practices[i].ID, practices[j].ID)
	})
	return practices, nil
}

func (repo *practiceRepository) HasOpenPractice(_ context.Context, studentID int64, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.tables.practices {
		if p.StudentID == studentID && p.Status == practice.StatusOpen {
			return true, nil
		}
	}
	return false, nil
}

func (repo *practiceRepository) SetEvaluator(_ context.Context, practiceID, evaluatorID int64, at time.Time, exec ...core.DBExecutor) error {
	defer repo.db.lockWrite(exec)()

	p, ok := repo.db.tables.practices[practiceID]
	if !ok {
		return practice.ErrNotFound
	}
	p.EvaluatorID = null.Int64From(evaluatorID)
	p.UpdatedAt = at
	repo.db.tables.practices[practiceID] = p
	return nil
}

func (repo *practiceRepository) AddDocument(_ context.Context, doc practice.Document, exec ...core.DBExecutor) (practice.Document, error) {
	defer repo.db.lockWrite(exec)()

	doc.ID = repo.db.nextID("documents")
	repo.db.tables.documents[doc.ID] = doc
	return doc, nil
}

func (repo *practiceRepository) AddEvaluation(_ context.Context, ev practice.Evaluation, exec ...core.DBExecutor) (practice.Evaluation, error) {
	defer repo.db.lockWrite(exec)()

	ev.ID = repo.db.nextID("evaluations")
	repo.db.tables.evaluations[ev.ID] = ev
	return ev, nil
}

func (repo *practiceRepository) ClosePractice(_ context.Context, id int64, grade float64, at time.Time, exec ...core.DBExecutor) (bool, error) {
	defer repo.db.lockWrite(exec)()

	p, ok := repo.db.tables.practices[id]
	if !ok || p.Status != practice.StatusOpen {
		return false, nil
	}
	p.Status = practice.StatusClosed
	p.FinalGrade = null.Float64From(grade)
	p.ClosedAt = null.TimeFrom(at)
	p.UpdatedAt = at
	repo.db.tables.practices[id] = p
	return true, nil
}

func (repo *practiceRepository) CreateEvaluator(_ context.Context, ev practice.Evaluator, exec ...core.DBExecutor) (practice.Evaluator, error) {
	defer repo.db.lockWrite(exec)()

	for _, e := range repo.db.tables.evaluators {
		if e.Email == ev.Email {
			return practice.Evaluator{}, practice.ErrEvaluatorEmailExists
		}
	}
	ev.ID = repo.db.nextID("evaluators")
	repo.db.tables.evaluators[ev.ID] = ev
	return ev, nil
}

func (repo *practiceRepository) GetEvaluator(_ context.Context, filter practice.EvaluatorFilter, _ ...core.DBExecutor) (practice.Evaluator, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.ID > 0:
		if ev, ok := repo.db.tables.evaluators[filter.ID]; ok {
			return ev, nil
		}
	case filter.Email != "":
		for _, ev := range repo.db.tables.evaluators {
			if ev.Email == filter.Email {
				return ev, nil
			}
		}
	}
	return practice.Evaluator{}, practice.ErrEvaluatorNotFound
}

func (repo *practiceRepository) QueryEvaluators(_ context.Context, _ ...core.DBExecutor) ([]practice.Evaluator, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	evaluators := make([]practice.Evaluator, 0, len(repo.db.tables.evaluators))
	for _, ev := range repo.db.tables.evaluators {
		evaluators = append(evaluators, ev)
	}
	sort.Slice(evaluators, func(i, j int) bool {
		if evaluators[i].Name != evaluators[j].Name {
			return evaluators[i].Name < evaluators[j].Name
		}
		return evaluators[i].ID < evaluators[j].ID
	})
	return evaluators, nil
}
