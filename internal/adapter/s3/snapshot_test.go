package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/metar-etl/internal/domain"
)

var _ Client = (*memoryS3)(nil)

// memoryS3 stores objects by key.
type memoryS3 struct {
	objects map[string][]byte
	getErr  error
}

func (m *memoryS3) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memoryS3) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Key)] = data
	return &awss3.PutObjectOutput{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(client Client, clock clockwork.Clock) *SnapshotStore {
	s := NewSnapshotStore(client, "catalog-bucket", 24*time.Hour, discardLogger())
	s.clock = clock
	return s
}

func stations() []domain.StationRecord {
	return []domain.StationRecord{
		{Region: "NJ", Name: "NEWARK", ICAO: "KEWR", Lat: 40.7, Lon: -74.17, Capabilities: domain.Capabilities{METAR: true, ASOS: true}},
		{Region: "NY", Name: "UPTON", ICAO: "KOKX", Lat: 40.87, Lon: -72.87, Capabilities: domain.Capabilities{Radar: true}},
	}
}

func TestSnapshotStore_SaveAndLoad(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC))
	store := testStore(&memoryS3{objects: map[string][]byte{}}, clock)

	require.NoError(t, store.Save(context.Background(), stations()))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stations(), got)
}

func TestSnapshotStore_Expired(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC))
	store := testStore(&memoryS3{objects: map[string][]byte{}}, clock)
	require.NoError(t, store.Save(context.Background(), stations()))

	clock.Advance(25 * time.Hour)
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotStore_Missing(t *testing.T) {
	store := testStore(&memoryS3{objects: map[string][]byte{}}, clockwork.NewFakeClock())
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotStore_Errors(t *testing.T) {
	store := testStore(&memoryS3{getErr: errors.New("access denied")}, clockwork.NewFakeClock())
	_, err := store.Load(context.Background())
	assert.ErrorContains(t, err, "access denied")

	corrupt := &memoryS3{objects: map[string][]byte{snapshotKey: []byte("{")}}
	_, err = testStore(corrupt, clockwork.NewFakeClock()).Load(context.Background())
	assert.ErrorContains(t, err, "decode station snapshot")

	empty := NewSnapshotStore(&memoryS3{}, "", time.Hour, discardLogger())
	_, err = empty.Load(context.Background())
	assert.Error(t, err)
	assert.Error(t, empty.Save(context.Background(), stations()))
}
