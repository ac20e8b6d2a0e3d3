package secrets

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credstack/rotor/internal/secure"
)

type fakeSecretsManager struct {
	getOut *secretsmanager.GetSecretValueOutput
	getErr error

	putOut *secretsmanager.PutSecretValueOutput
	putErr error

	createOut   *secretsmanager.CreateSecretOutput
	createErr   error
	createInput *secretsmanager.CreateSecretInput

	getInput *secretsmanager.GetSecretValueInput
	putInput *secretsmanager.PutSecretValueInput
}

func (f *fakeSecretsManager) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.getInput = params
	return f.getOut, f.getErr
}

func (f *fakeSecretsManager) PutSecretValue(_ context.Context, params *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.putInput = params
	return f.putOut, f.putErr
}

func (f *fakeSecretsManager) CreateSecret(_ context.Context, params *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.createInput = params
	return f.createOut, f.createErr
}

func strptr(s string) *string { return &s }

func TestAWSStore_Get(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	client := &fakeSecretsManager{
		getOut: &secretsmanager.GetSecretValueOutput{
			SecretString: strptr("s3cr3t"),
			VersionId:    strptr("ver-123"),
			CreatedDate:  &created,
		},
	}
	store := newAWSStoreWithClient(client, "prod/rotor")

	buf, version, err := store.Get(context.Background(), "auth/jwt")
	require.NoError(t, err)
	defer buf.Destroy()

	value, err := buf.String()
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", value)
	assert.Equal(t, "ver-123", version.Ref)
	assert.Equal(t, created, version.CreatedAt)
	assert.Equal(t, "prod/rotor/auth/jwt", *client.getInput.SecretId)
}

func TestAWSStore_GetMissing(t *testing.T) {
	t.Parallel()

	client := &fakeSecretsManager{getErr: &types.ResourceNotFoundException{}}
	store := newAWSStoreWithClient(client, "")

	_, _, err := store.Get(context.Background(), "auth/jwt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAWSStore_PutExisting(t *testing.T) {
	t.Parallel()

	client := &fakeSecretsManager{
		putOut: &secretsmanager.PutSecretValueOutput{VersionId: strptr("ver-456")},
	}
	store := newAWSStoreWithClient(client, "")

	version, err := store.Put(context.Background(), "auth/jwt", secure.NewBufferFromString("new-value"), "rotated")
	require.NoError(t, err)
	assert.Equal(t, "ver-456", version.Ref)
	assert.Equal(t, "new-value", *client.putInput.SecretString)
	assert.Nil(t, client.createInput)
}

func TestAWSStore_PutCreatesOnFirstWrite(t *testing.T) {
	t.Parallel()

	client := &fakeSecretsManager{
		putErr:    &types.ResourceNotFoundException{},
		createOut: &secretsmanager.CreateSecretOutput{VersionId: strptr("ver-001")},
	}
	store := newAWSStoreWithClient(client, "prod/rotor")

	version, err := store.Put(context.Background(), "auth/apikey", secure.NewBufferFromString("initial"), "managed api key")
	require.NoError(t, err)
	assert.Equal(t, "ver-001", version.Ref)

	require.NotNil(t, client.createInput)
	assert.Equal(t, "prod/rotor/auth/apikey", *client.createInput.Name)
	assert.Equal(t, "initial", *client.createInput.SecretString)
	assert.Equal(t, "managed api key", *client.createInput.Description)
}
