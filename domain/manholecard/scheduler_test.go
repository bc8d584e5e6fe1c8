package manholecard

import (
	"testing"

	"github.com/asksbj/jpstamp-pipeline/internal/httpclient"
)

func TestBuild_ReturnsNonNilScheduler(t *testing.T) {
	tmp := t.TempDir()
	sched := Build(4, Dependencies{
		DB:         nil,
		Staging:    &FSStagingRepository{Root: tmp + "/staging"},
		Published:  &FSPublishedRepository{Root: tmp + "/published"},
		HTTPClient: httpclient.New(httpclient.Options{}),
	})
	if sched == nil {
		t.Fatal("expected a non-nil scheduler")
	}
	if sched.Id() != Domain {
		t.Fatalf("expected component id %q, got %q", Domain, sched.Id())
	}
}
