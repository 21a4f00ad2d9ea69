package service

import (
	"sync"
	"testing"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
)

func TestJobOfferTargetsOnlineAndOffline(t *testing.T) {
	env := newTestEnv(t)
	admin := env.connect(t, "tok-adm", model.KindAdmin)
	pro := env.connect(t, "tok-pro", model.KindProfessional)
	recvFrame(t, admin) // user_status for pro

	// pro-2 is a valid target but never connected.
	env.send(t, admin, `{"type":"job_offer","job_id":"job-1","professional_ids":["pro-1","pro-2"]}`)

	got := recvFrame(t, pro)
	if got["type"] != model.TypeNewJob {
		t.Fatalf("frame type = %v, want new_job", got["type"])
	}
	job := got["job"].(map[string]any)
	if job["job_id"] != "job-1" || job["service"] != "deep clean" {
		t.Fatalf("job payload = %v", job)
	}

	pushes := env.notifier.pushed()
	if len(pushes) != 1 || pushes[0] != "pro-2" {
		t.Fatalf("offline pushes = %v, want [pro-2]", pushes)
	}
}

func TestJobOfferRestrictedToAdmins(t *testing.T) {
	env := newTestEnv(t)
	pro := env.connect(t, "tok-pro", model.KindProfessional)

	env.send(t, pro, `{"type":"job_offer","job_id":"job-1","professional_ids":["pro-1"]}`)
	expectError(t, pro, model.ErrForbidden)
}

func TestJobOfferUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	admin := env.connect(t, "tok-adm", model.KindAdmin)

	env.send(t, admin, `{"type":"job_offer","job_id":"no-such-job","professional_ids":["pro-1"]}`)
	expectError(t, admin, model.ErrInvalidFormat)
}

func TestJobAcceptFirstWins(t *testing.T) {
	env := newTestEnv(t)
	winner := env.connect(t, "tok-pro", model.KindProfessional)
	loser := env.connect(t, "tok-pro2", model.KindProfessional)
	recvFrame(t, winner) // user_status for pro-2

	env.send(t, winner, `{"type":"job_accept","job_id":"job-1"}`)

	got := recvFrame(t, winner)
	if got["type"] != model.TypeJobAccepted || got["room_id"] != "booking-1" {
		t.Fatalf("winner frame = %v, want job_accepted with the room id", got)
	}
	if got := recvFrame(t, loser); got["type"] != model.TypeJobTaken || got["accepted_by"] != "pro-1" {
		t.Fatalf("loser frame = %v, want job_taken", got)
	}

	env.send(t, loser, `{"type":"job_accept","job_id":"job-1"}`)
	expectError(t, loser, model.ErrJobNoLongerAvailable)
}

func TestJobAcceptRace(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "tok-pro", model.KindProfessional)
	b := env.connect(t, "tok-pro2", model.KindProfessional)
	recvFrame(t, a) // user_status for pro-2

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		env.send(t, a, `{"type":"job_accept","job_id":"job-1"}`)
	}()
	go func() {
		defer wg.Done()
		env.send(t, b, `{"type":"job_accept","job_id":"job-1"}`)
	}()
	wg.Wait()

	// Exactly one acceptor wins. The loser sees the rejection plus the
	// job_taken broadcast; the winner sees only its confirmation.
	counts := map[string]int{}
	for _, frame := range append(drainFrames(a), drainFrames(b)...) {
		counts[frame["type"].(string)]++
	}

	if counts[model.TypeJobAccepted] != 1 {
		t.Fatalf("winners = %d, want exactly 1 (%v)", counts[model.TypeJobAccepted], counts)
	}
	if counts[model.TypeError] != 1 || counts[model.TypeJobTaken] != 1 {
		t.Fatalf("loser frames wrong: %v", counts)
	}
}

func TestJobAcceptRestrictedToProfessionals(t *testing.T) {
	env := newTestEnv(t)
	cust := env.connect(t, "tok-cust", model.KindCustomer)

	env.send(t, cust, `{"type":"job_accept","job_id":"job-1"}`)
	expectError(t, cust, model.ErrForbidden)
}

func TestJobAcceptUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	pro := env.connect(t, "tok-pro", model.KindProfessional)

	env.send(t, pro, `{"type":"job_accept","job_id":"no-such-job"}`)
	expectError(t, pro, model.ErrJobNoLongerAvailable)
}
