package notify

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hearthhq/hearth/internal/model"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

type fakeTasks struct {
	due       []model.Task
	dueErr    error
	overdue   map[int64][]model.Task
	completed map[int64][]model.Task
	approvals map[int64]int

	completedCalls [][2]time.Time
}

func (f *fakeTasks) FindDueWithin(until time.Time) ([]model.Task, error) {
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	var out []model.Task
	for _, t := range f.due {
		if t.DueDate != nil && !t.DueDate.After(until) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTasks) FindOverdue(familyID int64, now time.Time) ([]model.Task, error) {
	return f.overdue[familyID], nil
}

func (f *fakeTasks) FindCompletedInRange(familyID int64, start, end time.Time) ([]model.Task, error) {
	f.completedCalls = append(f.completedCalls, [2]time.Time{start, end})
	return f.completed[familyID], nil
}

func (f *fakeTasks) CountPendingApprovals(familyID int64) (int, error) {
	return f.approvals[familyID], nil
}

type prefKey struct {
	userID   int64
	familyID int64
}

type updateCall struct {
	userID   int64
	familyID int64
	category string
	at       time.Time
}

type fakePrefs struct {
	records map[prefKey]*model.NotificationPreferences
	updates []updateCall
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{records: make(map[prefKey]*model.NotificationPreferences)}
}

func (f *fakePrefs) add(p model.NotificationPreferences) *model.NotificationPreferences {
	rec := p
	f.records[prefKey{p.UserID, p.FamilyID}] = &rec
	return &rec
}

func (f *fakePrefs) GetOrCreate(userID, familyID int64) (*model.NotificationPreferences, error) {
	if rec, ok := f.records[prefKey{userID, familyID}]; ok {
		return rec, nil
	}
	def := model.DefaultPreferences(userID, familyID)
	return f.add(def), nil
}

func (f *fakePrefs) FindSubscribedForDigest(hhmm string) ([]model.NotificationPreferences, error) {
	var out []model.NotificationPreferences
	for _, rec := range f.records {
		if rec.DigestEnabled && rec.DailyDigestTime == hhmm {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakePrefs) UpdateLastNotification(userID, familyID int64, category string, at time.Time) error {
	f.updates = append(f.updates, updateCall{userID, familyID, category, at})
	rec, ok := f.records[prefKey{userID, familyID}]
	if !ok {
		return fmt.Errorf("no preference record for user %d", userID)
	}
	stamp := at
	switch category {
	case model.CategoryChoreReminder:
		rec.LastChoreReminder = &stamp
	case model.CategoryDailyDigest:
		rec.LastDailyDigest = &stamp
	}
	return nil
}

type fakeDispatch struct {
	reminders []ReminderJob
	digests   []DigestPayload
	failUsers map[int64]bool
}

func (f *fakeDispatch) SendReminder(job ReminderJob) error {
	if f.failUsers[job.UserID] {
		return errors.New("delivery failed")
	}
	f.reminders = append(f.reminders, job)
	return nil
}

func (f *fakeDispatch) SendDigest(payload DigestPayload) error {
	if f.failUsers[payload.UserID] {
		return errors.New("delivery failed")
	}
	f.digests = append(f.digests, payload)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{Location: time.UTC}
}

// noon is a fixed reference instant well clear of any quiet-hours defaults.
var noon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func dueIn(d time.Duration) *time.Time {
	t := noon.Add(d)
	return &t
}

func assignedTask(id, familyID, userID int64, due *time.Time) model.Task {
	return model.Task{
		ID:         id,
		FamilyID:   familyID,
		Title:      fmt.Sprintf("task %d", id),
		AssigneeID: &userID,
		DueDate:    due,
		Status:     model.TaskStatusPending,
	}
}

func newReminderEngine(tasks *fakeTasks, prefs *fakePrefs, dispatch *fakeDispatch) *ReminderEngine {
	return NewReminderEngine(tasks, prefs, dispatch, fixedClock{noon}, testConfig(), testLogger())
}

func TestDueTier(t *testing.T) {
	prefs := &model.NotificationPreferences{
		FirstReminderDays:  3,
		SecondReminderDays: 1,
		FinalReminderHours: 2,
	}

	cases := []struct {
		name     string
		due      time.Time
		wantTier ReminderTier
		wantOK   bool
	}{
		{"three days out matches first", noon.Add(72 * time.Hour), TierFirst, true},
		{"one day out matches second", noon.Add(24 * time.Hour), TierSecond, true},
		{"two days out matches nothing", noon.Add(48 * time.Hour), "", false},
		{"day tier wins over final window", noon.Add(90 * time.Minute), TierSecond, true},
		{"due this instant", noon, TierFinal, true},
		{"overdue", noon.Add(-36 * time.Hour), TierFinal, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tier, ok := dueTier(tc.due, prefs, noon)
			if ok != tc.wantOK || tier != tc.wantTier {
				t.Errorf("dueTier = (%q, %v), want (%q, %v)", tier, ok, tc.wantTier, tc.wantOK)
			}
		})
	}
}

func TestDueTierFinalWindow(t *testing.T) {
	// With no day tier claiming the last day, the final hour window fires.
	prefs := &model.NotificationPreferences{FinalReminderHours: 2}

	tier, ok := dueTier(noon.Add(90*time.Minute), prefs, noon)
	if !ok || tier != TierFinal {
		t.Errorf("dueTier = (%q, %v), want (final, true)", tier, ok)
	}
	if _, ok := dueTier(noon.Add(3*time.Hour), prefs, noon); ok {
		t.Error("outside final window still fired")
	}
}

func TestDueTierDisabledTiers(t *testing.T) {
	prefs := &model.NotificationPreferences{}

	if _, ok := dueTier(noon.Add(72*time.Hour), prefs, noon); ok {
		t.Error("disabled first tier still fired")
	}
	// Overdue eligibility does not depend on any tier being configured.
	tier, ok := dueTier(noon.Add(-time.Hour), prefs, noon)
	if !ok || tier != TierFinal {
		t.Errorf("overdue with all tiers disabled = (%q, %v), want (final, true)", tier, ok)
	}
}

func TestDaysUntil(t *testing.T) {
	cases := []struct {
		offset time.Duration
		want   int
	}{
		{72 * time.Hour, 3},
		{25 * time.Hour, 2},
		{24 * time.Hour, 1},
		{time.Hour, 1},
		{0, 0},
		{-time.Hour, 0},
		{-25 * time.Hour, -1},
	}
	for _, tc := range cases {
		if got := daysUntil(noon.Add(tc.offset), noon); got != tc.want {
			t.Errorf("daysUntil(now%+v) = %d, want %d", tc.offset, got, tc.want)
		}
	}
}

func TestOverdueTaskAlwaysEligible(t *testing.T) {
	tasks := &fakeTasks{due: []model.Task{assignedTask(1, 10, 100, dueIn(-72 * time.Hour))}}
	prefs := newFakePrefs()
	dispatch := &fakeDispatch{}

	engine := newReminderEngine(tasks, prefs, dispatch)
	if err := engine.ProcessDueReminders(nil); err != nil {
		t.Fatalf("process reminders: %v", err)
	}

	if len(dispatch.reminders) != 1 {
		t.Fatalf("got %d reminders, want 1", len(dispatch.reminders))
	}
	job := dispatch.reminders[0]
	if job.Tier != TierFinal {
		t.Errorf("tier = %q, want final", job.Tier)
	}
	if job.DaysUntilDue != -2 {
		t.Errorf("days until due = %d, want -2", job.DaysUntilDue)
	}
}

func TestReminderRecordsSendTime(t *testing.T) {
	tasks := &fakeTasks{due: []model.Task{assignedTask(1, 10, 100, dueIn(72 * time.Hour))}}
	prefs := newFakePrefs()
	dispatch := &fakeDispatch{}

	engine := newReminderEngine(tasks, prefs, dispatch)
	if err := engine.ProcessDueReminders(nil); err != nil {
		t.Fatalf("process reminders: %v", err)
	}

	if len(prefs.updates) != 1 {
		t.Fatalf("got %d timestamp updates, want 1", len(prefs.updates))
	}
	u := prefs.updates[0]
	if u.category != model.CategoryChoreReminder || u.userID != 100 || !u.at.Equal(noon) {
		t.Errorf("unexpected update %+v", u)
	}
}

func TestReminderRateLimit(t *testing.T) {
	tasks := &fakeTasks{due: []model.Task{assignedTask(1, 10, 100, dueIn(72 * time.Hour))}}
	prefs := newFakePrefs()
	recent := noon.Add(-6 * time.Hour)
	p := model.DefaultPreferences(100, 10)
	p.LastChoreReminder = &recent
	prefs.add(p)
	dispatch := &fakeDispatch{}

	engine := newReminderEngine(tasks, prefs, dispatch)
	if err := engine.ProcessDueReminders(nil); err != nil {
		t.Fatalf("process reminders: %v", err)
	}

	if len(dispatch.reminders) != 0 {
		t.Errorf("got %d reminders, want 0 within rate-limit window", len(dispatch.reminders))
	}
	if len(prefs.updates) != 0 {
		t.Errorf("timestamp was updated on a suppressed send")
	}
	rec, _ := prefs.GetOrCreate(100, 10)
	if !rec.LastChoreReminder.Equal(recent) {
		t.Errorf("last reminder timestamp changed to %v", rec.LastChoreReminder)
	}
}

func TestReminderRateLimitExpired(t *testing.T) {
	tasks := &fakeTasks{due: []model.Task{assignedTask(1, 10, 100, dueIn(72 * time.Hour))}}
	prefs := newFakePrefs()
	old := noon.Add(-13 * time.Hour)
	p := model.DefaultPreferences(100, 10)
	p.LastChoreReminder = &old
	prefs.add(p)
	dispatch := &fakeDispatch{}

	engine := newReminderEngine(tasks, prefs, dispatch)
	if err := engine.ProcessDueReminders(nil); err != nil {
		t.Fatalf("process reminders: %v", err)
	}

	if len(dispatch.reminders) != 1 {
		t.Errorf("got %d reminders, want 1 after rate-limit window", len(dispatch.reminders))
	}
}

func TestReminderOnePerUserPerPass(t *testing.T) {
	tasks := &fakeTasks{due: []model.Task{
		assignedTask(1, 10, 100, dueIn(-2*time.Hour)),
		assignedTask(2, 10, 100, dueIn(-4*time.Hour)),
		assignedTask(3, 10, 100, dueIn(72*time.Hour)),
	}}
	prefs := newFakePrefs()
	dispatch := &fakeDispatch{}

	engine := newReminderEngine(tasks, prefs, dispatch)
	if err := engine.ProcessDueReminders(nil); err != nil {
		t.Fatalf("process reminders: %v", err)
	}

	if len(dispatch.reminders) != 1 {
		t.Errorf("got %d reminders, want 1 per user per pass", len(dispatch.reminders))
	}
}

func TestReminderQuietHours(t *testing.T) {
	tasks := &fakeTasks{due: []model.Task{assignedTask(1, 10, 100, dueIn(-time.Hour))}}
	prefs := newFakePrefs()
	p := model.DefaultPreferences(100, 10)
	p.QuietHoursStart = "11:00"
	p.QuietHoursEnd = "13:00"
	prefs.add(p)
	dispatch := &fakeDispatch{}

	engine := newReminderEngine(tasks, prefs, dispatch)
	if err := engine.ProcessDueReminders(nil); err != nil {
		t.Fatalf("process reminders: %v", err)
	}

	if len(dispatch.reminders) != 0 {
		t.Errorf("got %d reminders during quiet hours, want 0", len(dispatch.reminders))
	}
	if len(prefs.updates) != 0 {
		t.Errorf("quiet-hours skip recorded a send")
	}
}

func TestReminderDisabledCategories(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(*model.NotificationPreferences)
	}{
		{"email off", func(p *model.NotificationPreferences) { p.EmailEnabled = false }},
		{"reminders off", func(p *model.NotificationPreferences) { p.RemindersEnabled = false }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tasks := &fakeTasks{due: []model.Task{assignedTask(1, 10, 100, dueIn(-time.Hour))}}
			prefs := newFakePrefs()
			p := model.DefaultPreferences(100, 10)
			tc.setup(&p)
			prefs.add(p)
			dispatch := &fakeDispatch{}

			engine := newReminderEngine(tasks, prefs, dispatch)
			if err := engine.ProcessDueReminders(nil); err != nil {
				t.Fatalf("process reminders: %v", err)
			}
			if len(dispatch.reminders) != 0 {
				t.Errorf("got %d reminders, want 0", len(dispatch.reminders))
			}
		})
	}
}

func TestReminderDispatchFailureIsolation(t *testing.T) {
	tasks := &fakeTasks{}
	for i := int64(1); i <= 5; i++ {
		tasks.due = append(tasks.due, assignedTask(i, 10, 100+i, dueIn(-time.Hour)))
	}
	prefs := newFakePrefs()
	dispatch := &fakeDispatch{failUsers: map[int64]bool{103: true}}

	engine := newReminderEngine(tasks, prefs, dispatch)
	if err := engine.ProcessDueReminders(nil); err != nil {
		t.Fatalf("process reminders: %v", err)
	}

	if len(dispatch.reminders) != 4 {
		t.Errorf("got %d reminders, want 4 despite one failure", len(dispatch.reminders))
	}
	for _, u := range prefs.updates {
		if u.userID == 103 {
			t.Errorf("failed delivery still recorded a send for user 103")
		}
	}
	if len(prefs.updates) != 4 {
		t.Errorf("got %d timestamp updates, want 4", len(prefs.updates))
	}
}

func TestReminderFamilyScope(t *testing.T) {
	tasks := &fakeTasks{due: []model.Task{
		assignedTask(1, 10, 100, dueIn(-time.Hour)),
		assignedTask(2, 20, 200, dueIn(-time.Hour)),
	}}
	prefs := newFakePrefs()
	dispatch := &fakeDispatch{}

	engine := newReminderEngine(tasks, prefs, dispatch)
	familyID := int64(20)
	if err := engine.ProcessDueReminders(&familyID); err != nil {
		t.Fatalf("process reminders: %v", err)
	}

	if len(dispatch.reminders) != 1 || dispatch.reminders[0].FamilyID != 20 {
		t.Fatalf("scoped pass dispatched %+v, want only family 20", dispatch.reminders)
	}
}

func TestReminderSelectionFailureAbortsPass(t *testing.T) {
	tasks := &fakeTasks{dueErr: errors.New("database locked")}
	engine := newReminderEngine(tasks, newFakePrefs(), &fakeDispatch{})

	if err := engine.ProcessDueReminders(nil); err == nil {
		t.Fatal("expected error when candidate selection fails")
	}
}

func TestReminderSkipsUnassignedAndClosed(t *testing.T) {
	done := assignedTask(2, 10, 100, dueIn(-time.Hour))
	done.Status = model.TaskStatusCompleted
	noAssignee := model.Task{ID: 3, FamilyID: 10, DueDate: dueIn(-time.Hour), Status: model.TaskStatusPending}

	tasks := &fakeTasks{due: []model.Task{done, noAssignee}}
	prefs := newFakePrefs()
	dispatch := &fakeDispatch{}

	engine := newReminderEngine(tasks, prefs, dispatch)
	if err := engine.ProcessDueReminders(nil); err != nil {
		t.Fatalf("process reminders: %v", err)
	}
	if len(dispatch.reminders) != 0 {
		t.Errorf("got %d reminders for ineligible tasks, want 0", len(dispatch.reminders))
	}
}
