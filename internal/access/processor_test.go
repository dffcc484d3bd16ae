package access_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"dsrengine/internal/access"
	"dsrengine/internal/audit"
	"dsrengine/internal/categoryrun"
	"dsrengine/internal/export"
	exportmocks "dsrengine/internal/export/mocks"
	"dsrengine/internal/registry"
	regmocks "dsrengine/internal/registry/mocks"
	"dsrengine/internal/registry/registrytest"
	id "dsrengine/pkg/domain"
)

type ProcessorSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	handlers   map[string]*regmocks.MockHandler
	snap       *registry.Snapshot
	exports    *export.Service
	auditStore *audit.InMemoryStore
	now        time.Time
	processor  *access.Processor
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorSuite))
}

func (s *ProcessorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.handlers = map[string]*regmocks.MockHandler{}
	s.snap = registrytest.New(s.T(), func(c registry.Category) (registry.Handler, error) {
		h := regmocks.NewMockHandler(s.ctrl)
		s.handlers[c.ID] = h
		return h, nil
	}).Current()
	s.now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	s.exports = export.NewService(export.NewMemoryBlobs(), export.NewMemoryIndex(), export.WithClock(clock))
	s.auditStore = audit.NewInMemoryStore()
	s.processor = access.New(
		categoryrun.New(categoryrun.WithBaseDelay(time.Millisecond)),
		s.exports,
		audit.NewPublisher(s.auditStore),
		access.WithClock(clock),
		access.WithHandleTTL(24*time.Hour),
		access.WithParallelism(2),
	)
}

func (s *ProcessorSuite) TestCollectsAllCategoriesIntoExport() {
	ctx := context.Background()
	for cat, h := range s.handlers {
		h.EXPECT().Collect(gomock.Any(), id.UserID("u1")).Return([]string{cat + "-record"}, nil)
	}
	rid := id.NewRequestID()

	handle, err := s.processor.Process(ctx, s.snap, access.Job{RequestID: rid, UserID: "u1"})
	s.Require().NoError(err)
	s.Equal(s.now.Add(24*time.Hour), handle.ExpiresAt)

	dl, err := s.exports.Resolve(ctx, handle.Token)
	s.Require().NoError(err)
	var payload struct {
		RequestID   string              `json:"request_id"`
		UserID      string              `json:"user_id"`
		GeneratedAt time.Time           `json:"generated_at"`
		Categories  map[string][]string `json:"categories"`
	}
	s.Require().NoError(json.Unmarshal(dl.Payload, &payload))
	s.Equal(rid.String(), payload.RequestID)
	s.Equal("u1", payload.UserID)
	s.True(s.now.Equal(payload.GeneratedAt))
	s.Len(payload.Categories, 4)
	s.Equal([]string{"payment_info-record"}, payload.Categories["payment_info"])

	events, err := s.auditStore.ListByUser(ctx, "u1")
	s.Require().NoError(err)
	s.Len(events, 4)
	for _, e := range events {
		s.Equal(audit.ActionCategoryCollected, e.Action)
	}
}

func (s *ProcessorSuite) TestExplicitCategoriesOnly() {
	s.handlers["contact_info"].EXPECT().Collect(gomock.Any(), id.UserID("u1")).Return(nil, nil)

	_, err := s.processor.Process(context.Background(), s.snap, access.Job{
		RequestID: id.NewRequestID(), UserID: "u1", Categories: []string{"contact_info"},
	})
	s.Require().NoError(err)
}

func (s *ProcessorSuite) TestCategoryFailureFailsWholeRequest() {
	s.handlers["contact_info"].EXPECT().Collect(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	s.handlers["activity_data"].EXPECT().Collect(gomock.Any(), gomock.Any()).Return(nil, errors.New("corrupt row")).AnyTimes()
	s.handlers["access_logs"].EXPECT().Collect(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	s.handlers["payment_info"].EXPECT().Collect(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	_, err := s.processor.Process(context.Background(), s.snap, access.Job{RequestID: id.NewRequestID(), UserID: "u1"})
	s.Require().Error(err)
	ce, ok := categoryrun.AsCategoryError(err)
	s.Require().True(ok)
	s.Equal("activity_data", ce.Category)
	s.Equal(categoryrun.OpCollect, ce.Operation)
}

func (s *ProcessorSuite) TestParallelismIsBounded() {
	var active, peak int32
	for _, h := range s.handlers {
		h.EXPECT().Collect(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, id.UserID) (any, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil, nil
		})
	}
	_, err := s.processor.Process(context.Background(), s.snap, access.Job{RequestID: id.NewRequestID(), UserID: "u1"})
	s.Require().NoError(err)
	s.LessOrEqual(atomic.LoadInt32(&peak), int32(2))
}

func (s *ProcessorSuite) TestPublishFailure() {
	ctrl := gomock.NewController(s.T())
	exports := exportmocks.NewMockStore(ctrl)
	exports.EXPECT().Publish(gomock.Any(), id.UserID("u1"), gomock.Any(), gomock.Any(), access.DefaultHandleTTL).
		Return(export.Handle{}, errors.New("bucket gone"))
	s.handlers["contact_info"].EXPECT().Collect(gomock.Any(), gomock.Any()).Return(nil, nil)

	processor := access.New(categoryrun.New(), exports, nil)
	_, err := processor.Process(context.Background(), s.snap, access.Job{
		RequestID: id.NewRequestID(), UserID: "u1", Categories: []string{"contact_info"},
	})
	s.Error(err)
}
