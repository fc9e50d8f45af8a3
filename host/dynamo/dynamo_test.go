package dynamo

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/segkit/host"
	"github.com/hupe1980/segkit/host/hosttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memoryDDB is an in-memory table understanding the two condition
// expressions the host issues.
type memoryDDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newMemoryDDB() *memoryDDB {
	return &memoryDDB{items: make(map[string]map[string]types.AttributeValue)}
}

func pk(item map[string]types.AttributeValue) string {
	return item[attrKey].(*types.AttributeValueMemberS).Value
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		if b, ok := v.(*types.AttributeValueMemberB); ok {
			v = &types.AttributeValueMemberB{Value: bytes.Clone(b.Value)}
		}
		out[k] = v
	}
	return out
}

func (m *memoryDDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pk(in.Item)
	cur, exists := m.items[key]
	switch aws.ToString(in.ConditionExpression) {
	case condAbsent:
		if exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	case condVersion:
		want := in.ExpressionAttributeValues[":v"].(*types.AttributeValueMemberN).Value
		if !exists || cur[attrVersion].(*types.AttributeValueMemberN).Value != want {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("version")}
		}
	}
	m.items[key] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memoryDDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item, ok := m.items[pk(in.Key)]; ok {
		return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *memoryDDB) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, pk(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *memoryDDB) Scan(_ context.Context, _ *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []map[string]types.AttributeValue
	for key := range m.items {
		items = append(items, map[string]types.AttributeValue{attrKey: &types.AttributeValueMemberS{Value: key}})
	}
	sort.Slice(items, func(i, j int) bool { return pk(items[i]) < pk(items[j]) })
	return &dynamodb.ScanOutput{Items: items}, nil
}

func TestHost_Conformance(t *testing.T) {
	hosttest.Run(t, func(*testing.T) host.Host { return NewHost(newMemoryDDB(), "segkit") })
}

func TestHost_SecondWriterConflicts(t *testing.T) {
	ctx := context.Background()
	table := newMemoryDDB()
	a := NewHost(table, "segkit")
	b := NewHost(table, "segkit")
	key := hosttest.Key("contended")

	_, err := a.Allocate(ctx, key, 8)
	require.NoError(t, err)

	bufB, err := b.Read(ctx, key)
	require.NoError(t, err)
	bufA, err := a.Read(ctx, key)
	require.NoError(t, err)

	copy(bufA, "writer-a")
	require.NoError(t, a.Persist(ctx, key, bufA))

	copy(bufB, "writer-b")
	err = b.Persist(ctx, key, bufB)
	assert.ErrorIs(t, err, host.ErrConflict)

	// After a fresh read the loser can write again.
	bufB, err = b.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "writer-a", string(bufB))
	copy(bufB, "writer-b")
	require.NoError(t, b.Persist(ctx, key, bufB))
}

func TestHost_ItemLimit(t *testing.T) {
	ctx := context.Background()
	h := NewHost(newMemoryDDB(), "segkit")
	key := hosttest.Key("large")

	_, err := h.Allocate(ctx, key, MaxItemBytes+1)
	assert.ErrorIs(t, err, host.ErrGrowthDenied)

	_, err = h.Allocate(ctx, key, 1024)
	require.NoError(t, err)
	_, err = h.Resize(ctx, key, MaxItemBytes+1)
	assert.ErrorIs(t, err, host.ErrGrowthDenied)

	small := NewHost(newMemoryDDB(), "segkit", WithMaxLen(64))
	_, err = small.Allocate(ctx, key, 65)
	assert.ErrorIs(t, err, host.ErrGrowthDenied)
}

func TestHost_Keys(t *testing.T) {
	ctx := context.Background()
	h := NewHost(newMemoryDDB(), "segkit")

	for _, name := range []string{"a", "b", "c"} {
		_, err := h.Allocate(ctx, hosttest.Key(name), 1)
		require.NoError(t, err)
	}
	keys, err := h.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockClient) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func (m *mockClient) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.ScanOutput)
	return out, args.Error(1)
}

func TestHost_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	key := hosttest.Key("mapped")
	boom := errors.New("throttled")

	client := new(mockClient)
	h := NewHost(client, "segkit")

	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return aws.ToString(in.TableName) == "segkit" && aws.ToString(in.ConditionExpression) == condAbsent
	})).Return(nil, &types.ConditionalCheckFailedException{}).Once()
	_, err := h.Allocate(ctx, key, 4)
	assert.ErrorIs(t, err, host.ErrExists)

	client.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return aws.ToBool(in.ConsistentRead)
	})).Return(nil, boom).Once()
	_, err = h.Read(ctx, key)
	assert.ErrorIs(t, err, boom)

	client.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil).Once()
	_, err = h.Read(ctx, key)
	assert.ErrorIs(t, err, host.ErrNotFound)

	client.On("DeleteItem", mock.Anything, mock.Anything).Return(nil, boom).Once()
	assert.ErrorIs(t, h.Release(ctx, key), boom)

	client.AssertExpectations(t)
}
