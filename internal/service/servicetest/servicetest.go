// Package servicetest provides in-memory stores and gateway doubles for
// exercising services and handlers without Postgres, Redis or PayPal.
package servicetest

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/enrolment-backend/internal/gateway"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/notify"
	"github.com/stemsi/enrolment-backend/internal/repository"
)

// Accounts is an in-memory AccountStore with the same conditional
// transitions as the SQL repository.
type Accounts struct {
	// Now stamps capture claims and creation times.
	Now func() time.Time

	mu     sync.Mutex
	nextID int
	byID   map[int]*model.Account
}

// NewAccounts creates an empty Accounts store.
func NewAccounts() *Accounts {
	return &Accounts{byID: make(map[int]*model.Account), Now: time.Now}
}

func (m *Accounts) copyOf(a *model.Account) *model.Account {
	c := *a
	return &c
}

func (m *Accounts) find(match func(*model.Account) bool) (*model.Account, error) {
	for _, a := range m.byID {
		if match(a) {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Accounts) GetByID(_ context.Context, id int) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.copyOf(a), nil
}

func (m *Accounts) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.find(func(a *model.Account) bool { return a.Email == email })
	if err != nil {
		return nil, err
	}
	return m.copyOf(a), nil
}

func (m *Accounts) GetByOrderID(_ context.Context, orderID string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.find(func(a *model.Account) bool { return a.PaymentOrderID == orderID })
	if err != nil {
		return nil, err
	}
	return m.copyOf(a), nil
}

func (m *Accounts) ExistsWithRole(_ context.Context, role model.Role) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.find(func(a *model.Account) bool { return a.Role == role })
	return err == nil, nil
}

func (m *Accounts) ListPaginated(_ context.Context, filter model.ListAccountsFilter, limit, offset int) ([]model.Account, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Account
	for _, a := range m.byID {
		if filter.Role == "" || a.Role == filter.Role {
			all = append(all, *a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *Accounts) Create(_ context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.find(func(x *model.Account) bool { return x.Email == a.Email }); err == nil {
		return repository.ErrDuplicateEmail
	}
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = m.Now()
	a.UpdatedAt = a.CreatedAt
	m.byID[a.ID] = m.copyOf(a)
	return nil
}

func (m *Accounts) UpdateProfile(_ context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.FirstName, cur.LastName, cur.Phone = a.FirstName, a.LastName, a.Phone
	cur.ProfilePhoto, cur.MaritalStatus = a.ProfilePhoto, a.MaritalStatus
	cur.State, cur.LocalGovt, cur.Address, cur.Nationality = a.State, a.LocalGovt, a.Address, a.Nationality
	cur.PasswordHash = a.PasswordHash
	return nil
}

func (m *Accounts) SetActive(_ context.Context, id int, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.IsActive = active
	return nil
}

func (m *Accounts) AttachOrder(_ context.Context, accountID int, orderID string, amount float64, currency string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[accountID]
	if !ok || a.PaymentStatus != model.PaymentPending || a.PaymentOrderID != "" {
		return repository.ErrStaleState
	}
	if _, err := m.find(func(o *model.Account) bool { return o.PaymentOrderID == orderID }); err == nil {
		return repository.ErrStaleState
	}
	a.PaymentOrderID = orderID
	a.PaymentAmount = &amount
	a.PaymentCurrency = currency
	a.PaymentStatus = model.PaymentProcessing
	return nil
}

func (m *Accounts) ClaimCapture(_ context.Context, orderID string, staleAfter time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.find(func(a *model.Account) bool { return a.PaymentOrderID == orderID })
	if err != nil || a.PaymentStatus != model.PaymentProcessing {
		return repository.ErrCaptureClaimed
	}
	now := m.Now()
	if a.CaptureClaimedAt != nil && a.CaptureClaimedAt.After(now.Add(-staleAfter)) {
		return repository.ErrCaptureClaimed
	}
	a.CaptureClaimedAt = &now
	return nil
}

func (m *Accounts) ReleaseCapture(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, err := m.find(func(a *model.Account) bool { return a.PaymentOrderID == orderID }); err == nil && a.PaymentStatus == model.PaymentProcessing {
		a.CaptureClaimedAt = nil
	}
	return nil
}

func (m *Accounts) CompletePayment(_ context.Context, orderID string, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.find(func(a *model.Account) bool { return a.PaymentOrderID == orderID })
	if err != nil || a.PaymentStatus != model.PaymentProcessing {
		return repository.ErrStaleState
	}
	a.PaymentStatus = model.PaymentCompleted
	a.PaymentDate = &paidAt
	a.CaptureClaimedAt = nil
	return nil
}

func (m *Accounts) FailPayment(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.find(func(a *model.Account) bool { return a.PaymentOrderID == orderID })
	if err != nil || a.PaymentStatus.IsTerminal() {
		return repository.ErrStaleState
	}
	a.PaymentStatus = model.PaymentFailed
	a.CaptureClaimedAt = nil
	return nil
}

// Gateway returns canned gateway answers and counts calls.
type Gateway struct {
	// CreateErr and CaptureErr, when set, are returned instead of an answer.
	CreateErr  error
	CaptureErr error
	// Capture overrides the default COMPLETED capture result.
	Capture *gateway.CaptureResult
	// CaptureBlock, when set, holds every capture until it is closed.
	CaptureBlock chan struct{}
	// OrderID, when set, is handed out for every created order.
	OrderID string

	mu       sync.Mutex
	creates  int
	captures int
}

func (g *Gateway) CreateOrder(_ context.Context, amount float64, currency string) (*gateway.Order, error) {
	g.mu.Lock()
	g.creates++
	n := g.creates
	g.mu.Unlock()
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	id := "ORDER-" + strconv.Itoa(n)
	if g.OrderID != "" {
		id = g.OrderID
	}
	return &gateway.Order{
		ID:     id,
		Status: gateway.StatusCreated,
		Links:  []gateway.Link{{Rel: "approve", Href: "https://paypal.test/checkoutnow?token=" + id}},
		Raw:    []byte(`{"id":"` + id + `","status":"CREATED"}`),
	}, nil
}

func (g *Gateway) CaptureOrder(_ context.Context, orderID string) (*gateway.CaptureResult, error) {
	g.mu.Lock()
	g.captures++
	block := g.CaptureBlock
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	if g.CaptureErr != nil {
		return nil, g.CaptureErr
	}
	if g.Capture != nil {
		c := *g.Capture
		c.OrderID = orderID
		return &c, nil
	}
	return &gateway.CaptureResult{
		OrderID:       orderID,
		Status:        gateway.StatusCompleted,
		CaptureID:     "CAP-1",
		CaptureStatus: gateway.StatusCompleted,
	}, nil
}

// Creates returns the number of CreateOrder calls.
func (g *Gateway) Creates() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.creates
}

// Captures returns the number of CaptureOrder calls.
func (g *Gateway) Captures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.captures
}

// Publisher records payment events.
type Publisher struct {
	mu     sync.Mutex
	events []model.PaymentEvent
}

// Events returns the published events.
func (p *Publisher) Events() []model.PaymentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.PaymentEvent(nil), p.events...)
}

func (p *Publisher) Publish(_ context.Context, e model.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// Kinds lists the kinds of the published events in order.
func (p *Publisher) Kinds() []model.PaymentEventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]model.PaymentEventKind, len(p.events))
	for i, e := range p.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Mailer records receipts.
type Mailer struct {
	mu       sync.Mutex
	receipts []notify.Receipt
}

func (m *Mailer) SendReceipt(_ context.Context, r notify.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, r)
	return nil
}

// Receipts returns the receipts sent so far.
func (m *Mailer) Receipts() []notify.Receipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Receipt(nil), m.receipts...)
}

// Revocations is an in-memory token deny-list.
type Revocations struct {
	// Err, when set, is returned by IsRevoked.
	Err error

	mu       sync.Mutex
	tokens   map[string]time.Time
	accounts map[int]time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{tokens: make(map[string]time.Time), accounts: make(map[int]time.Time)}
}

func (r *Revocations) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[jti] = expiresAt
	return nil
}

func (r *Revocations) RevokeAccount(_ context.Context, accountID int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[accountID] = at
	return nil
}

func (r *Revocations) IsRevoked(_ context.Context, jti string, accountID int, issuedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	if _, ok := r.tokens[jti]; ok {
		return true, nil
	}
	if at, ok := r.accounts[accountID]; ok && issuedAt.UnixMilli() <= at.UnixMilli() {
		return true, nil
	}
	return false, nil
}

// Exams is an in-memory exam store. Update only succeeds on drafts.
type Exams struct {
	// StatusErr, when set, is returned by UpdateStatus.
	StatusErr error

	mu    sync.Mutex
	exams map[uuid.UUID]*model.Exam
}

func NewExams() *Exams {
	return &Exams{exams: make(map[uuid.UUID]*model.Exam)}
}

func (m *Exams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *e
	return &c, nil
}

func (m *Exams) ListPaginated(_ context.Context, filter model.ListExamsFilter, limit, offset int) ([]model.Exam, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Exam
	for _, e := range m.exams {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.AuthorID != nil && e.AuthorID != *filter.AuthorID {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	if offset+limit < total {
		out = out[offset : offset+limit]
	} else {
		out = out[offset:]
	}
	return out, total, nil
}

func (m *Exams) ListPublished(ctx context.Context) ([]model.Exam, error) {
	exams, _, err := m.ListPaginated(ctx, model.ListExamsFilter{Status: model.ExamStatusPublished}, 1000, 0)
	return exams, err
}

func (m *Exams) Create(_ context.Context, e *model.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	c := *e
	m.exams[e.ID] = &c
	return nil
}

func (m *Exams) Update(_ context.Context, e *model.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.exams[e.ID]
	if !ok || cur.Status != model.ExamStatusDraft {
		return repository.ErrStaleState
	}
	c := *e
	m.exams[e.ID] = &c
	return nil
}

func (m *Exams) UpdateStatus(_ context.Context, id uuid.UUID, status model.ExamStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatusErr != nil {
		return m.StatusErr
	}
	e, ok := m.exams[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = status
	return nil
}

func (m *Exams) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.exams, id)
	return nil
}

// Questions is an in-memory question store.
type Questions struct {
	mu        sync.Mutex
	questions map[uuid.UUID][]model.Question
}

func NewQuestions() *Questions {
	return &Questions{questions: make(map[uuid.UUID][]model.Question)}
}

func (m *Questions) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Question(nil), m.questions[examID]...), nil
}

func (m *Questions) Create(_ context.Context, q *model.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = uuid.New()
	m.questions[q.ExamID] = append(m.questions[q.ExamID], *q)
	return nil
}

func (m *Questions) ReplaceForExam(_ context.Context, examID uuid.UUID, questions []model.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range questions {
		questions[i].ID = uuid.New()
	}
	m.questions[examID] = append([]model.Question(nil), questions...)
	return nil
}

// Papers is an in-memory paper cache.
type Papers struct {
	// DeleteErr, when set, is returned by Delete and the paper is kept.
	DeleteErr error

	mu     sync.Mutex
	papers map[string]*model.ExamPaper
}

func NewPapers() *Papers {
	return &Papers{papers: make(map[string]*model.ExamPaper)}
}

func (m *Papers) Get(_ context.Context, examID string) (*model.ExamPaper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.papers[examID], nil
}

func (m *Papers) Set(_ context.Context, paper *model.ExamPaper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.papers[paper.ExamID.String()] = paper
	return nil
}

func (m *Papers) Delete(_ context.Context, examID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.papers, examID)
	return nil
}

