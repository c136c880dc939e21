package pipeline

//go:generate mockgen -source=../ports/ports.go -destination=mocks/mocks.go -package=mocks Source,Sink

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"evfeed/internal/registration"
	"evfeed/internal/registration/pipeline/mocks"
)

type SinkContractSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	sink   *mocks.MockSink
	source *mocks.MockSource
}

func (s *SinkContractSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.sink = mocks.NewMockSink(s.ctrl)
	s.source = mocks.NewMockSource(s.ctrl)
}

func TestSinkContractSuite(t *testing.T) {
	suite.Run(t, new(SinkContractSuite))
}

func hasDOLID(id int) gomock.Matcher {
	return gomock.Cond(func(rec registration.Record) bool {
		return rec.DOLVehicleID == id
	})
}

func (s *SinkContractSuite) TestSubmitsInSourceOrderThenFlushes() {
	ctx := context.Background()

	gomock.InOrder(
		s.source.EXPECT().Next(gomock.Any()).Return(vehicleRow(10), nil),
		s.sink.EXPECT().Submit(gomock.Any(), topic, hasDOLID(10)).Return(nil),
		s.source.EXPECT().Next(gomock.Any()).Return(invalidRow(11), nil),
		s.source.EXPECT().Next(gomock.Any()).Return(vehicleRow(12), nil),
		s.sink.EXPECT().Submit(gomock.Any(), topic, hasDOLID(12)).Return(nil),
		s.source.EXPECT().Next(gomock.Any()).Return(nil, io.EOF),
		s.sink.EXPECT().Flush(gomock.Any()).Return(nil),
	)

	p, err := New(s.sink, topic)
	s.Require().NoError(err)

	sum, err := p.Run(ctx, s.source)
	s.Require().NoError(err)
	s.Equal(2, sum.Published)
	s.Equal(1, sum.Skipped)
}

func (s *SinkContractSuite) TestPipelineDoesNotCloseSink() {
	s.source.EXPECT().Next(gomock.Any()).Return(nil, io.EOF)
	s.sink.EXPECT().Flush(gomock.Any()).Return(nil)
	s.sink.EXPECT().Close().Times(0)

	p, err := New(s.sink, topic)
	s.Require().NoError(err)

	_, err = p.Run(context.Background(), s.source)
	s.Require().NoError(err)
}

func (s *SinkContractSuite) TestSubmitFailureCountsOnce() {
	s.source.EXPECT().Next(gomock.Any()).Return(vehicleRow(1), nil)
	s.sink.EXPECT().Submit(gomock.Any(), topic, gomock.Any()).Return(io.ErrClosedPipe).Times(1)
	s.source.EXPECT().Next(gomock.Any()).Return(nil, io.EOF)
	s.sink.EXPECT().Flush(gomock.Any()).Return(nil)

	p, err := New(s.sink, topic)
	s.Require().NoError(err)

	sum, err := p.Run(context.Background(), s.source)
	s.Require().ErrorIs(err, ErrSinkTransport)
	s.Equal(0, sum.Published)
	s.Equal(1, sum.Failed)
}
