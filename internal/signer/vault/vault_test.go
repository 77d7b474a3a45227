package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSecrets struct {
	value *string
	err   error
	calls int
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{ARN: in.SecretId, SecretString: f.value}, nil
}

const key = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSecretsManagerVault(t *testing.T) {
	tests := []struct {
		name      string
		arn       string
		fallback  string
		secrets   *fakeSecrets
		want      string
		wantErr   error
		wantCalls int
	}{
		{
			name:      "plain secret",
			arn:       "arn:aws:secretsmanager:us-east-1:1:secret:fee-payer",
			secrets:   &fakeSecrets{value: aws.String(key)},
			want:      key,
			wantCalls: 1,
		},
		{
			name:      "single-key json secret",
			arn:       "arn:aws:secretsmanager:us-east-1:1:secret:fee-payer",
			secrets:   &fakeSecrets{value: aws.String(`{"private_key":"0x` + key + `"}`)},
			want:      "0x" + key,
			wantCalls: 1,
		},
		{
			name:      "fetch failure falls back",
			arn:       "arn:aws:secretsmanager:us-east-1:1:secret:fee-payer",
			fallback:  key,
			secrets:   &fakeSecrets{err: errors.New("access denied")},
			want:      key,
			wantCalls: 1,
		},
		{
			name:      "no arn uses fallback",
			fallback:  key,
			secrets:   &fakeSecrets{},
			want:      key,
			wantCalls: 0,
		},
		{
			name:      "nothing configured",
			secrets:   &fakeSecrets{},
			wantErr:   ErrKeyNotFound,
			wantCalls: 0,
		},
		{
			name:      "empty secret and no fallback",
			arn:       "arn:aws:secretsmanager:us-east-1:1:secret:fee-payer",
			secrets:   &fakeSecrets{value: aws.String("")},
			wantErr:   ErrKeyNotFound,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewSecretsManagerVault(tt.secrets, tt.arn, tt.fallback, zap.NewNop())
			got, err := v.FeePayerKey(context.Background())
			assert.Equal(t, tt.wantCalls, tt.secrets.calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaticVault(t *testing.T) {
	_, err := NewStaticVault("  ", zap.NewNop())
	assert.ErrorIs(t, err, ErrKeyNotFound)

	v, err := NewStaticVault(key, zap.NewNop())
	require.NoError(t, err)
	got, err := v.FeePayerKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestNewWithoutARNUsesStaticKey(t *testing.T) {
	v, err := New(context.Background(), "", key, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &StaticVault{}, v)

	_, err = New(context.Background(), "", "", zap.NewNop())
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
