package sns

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

func TestSendSMS_PublishesTransactional(t *testing.T) {
	p := &mockPublisher{}
	p.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		attr, ok := in.MessageAttributes["AWS.SNS.SMS.SMSType"]
		return *in.PhoneNumber == "+15550001111" && *in.Message == "hello" &&
			ok && *attr.StringValue == "Transactional"
	})).Return(&sns.PublishOutput{}, nil)
	s := &sender{client: p}

	require.NoError(t, s.SendSMS(context.Background(), "+15550001111", "hello"))
	p.AssertExpectations(t)
}

func TestSendSMS_PropagatesError(t *testing.T) {
	p := &mockPublisher{}
	p.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))
	s := &sender{client: p}

	assert.EqualError(t, s.SendSMS(context.Background(), "+1", "x"), "throttled")
}
