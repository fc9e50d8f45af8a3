package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/segkit/host"
	"github.com/hupe1980/segkit/model"
)

// MaxItemBytes is the largest buffer stored by default, leaving room below
// the 400 KB item limit for the key and version attributes.
const MaxItemBytes = 400*1024 - 1024

const (
	attrKey     = "pk"
	attrData    = "data"
	attrVersion = "ver"

	condAbsent  = "attribute_not_exists(pk)"
	condVersion = "ver = :v"
)

// Client is the subset of *dynamodb.Client the host uses.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

// Host implements host.Host on a DynamoDB table.
type Host struct {
	client Client
	table  string
	maxLen int
	logger *slog.Logger

	mu    sync.Mutex
	known map[model.StorageKey]state
}

type state struct {
	version uint64
	length  int
}

var (
	_ host.Host   = (*Host)(nil)
	_ host.Lister = (*Host)(nil)
)

// Option configures a Host.
type Option func(*options)

type options struct {
	maxLen   int
	logger   *slog.Logger
	region   string
	endpoint string
}

// WithMaxLen lowers the buffer size limit below MaxItemBytes.
func WithMaxLen(n int) Option {
	return func(o *options) { o.maxLen = n }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegion overrides the region from the environment. Only used by New.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithEndpoint points New at another endpoint, e.g. DynamoDB Local.
func WithEndpoint(url string) Option {
	return func(o *options) { o.endpoint = url }
}

func applyOptions(opts []Option) options {
	o := options{maxLen: MaxItemBytes, logger: slog.New(slog.DiscardHandler)}
	for _, fn := range opts {
		fn(&o)
	}
	if o.maxLen <= 0 || o.maxLen > MaxItemBytes {
		o.maxLen = MaxItemBytes
	}
	return o
}

// New loads the default AWS configuration and returns a Host for table.
func New(ctx context.Context, table string, opts ...Option) (*Host, error) {
	o := applyOptions(opts)

	var loadOpts []func(*config.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("dynamo: load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(do *dynamodb.Options) {
		if o.endpoint != "" {
			do.BaseEndpoint = aws.String(o.endpoint)
		}
	})
	return newHost(client, table, o), nil
}

// NewHost wraps an existing client.
func NewHost(client Client, table string, opts ...Option) *Host {
	return newHost(client, table, applyOptions(opts))
}

func newHost(client Client, table string, o options) *Host {
	return &Host{
		client: client,
		table:  table,
		maxLen: o.maxLen,
		logger: o.logger,
		known:  make(map[model.StorageKey]state),
	}
}

func itemKey(key model.StorageKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKey: &types.AttributeValueMemberS{Value: key.String()},
	}
}

func version(v uint64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatUint(v, 10)}
}

func (h *Host) remember(key model.StorageKey, s state) {
	h.mu.Lock()
	h.known[key] = s
	h.mu.Unlock()
}

func (h *Host) forget(key model.StorageKey) {
	h.mu.Lock()
	delete(h.known, key)
	h.mu.Unlock()
}

func (h *Host) lookup(key model.StorageKey) (state, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.known[key]
	return s, ok
}

func (h *Host) checkLen(key model.StorageKey, n int) error {
	if n < 0 {
		return fmt.Errorf("dynamo: %s: negative length %d", key, n)
	}
	if n > h.maxLen {
		return fmt.Errorf("%w: %s: %d bytes exceeds item limit %d", host.ErrGrowthDenied, key, n, h.maxLen)
	}
	return nil
}

// fetch reads the item with a strongly consistent read.
func (h *Host) fetch(ctx context.Context, key model.StorageKey) ([]byte, state, error) {
	out, err := h.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(h.table),
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, state{}, fmt.Errorf("dynamo: get %s: %w", key, err)
	}
	if out.Item == nil {
		return nil, state{}, fmt.Errorf("%w: %s", host.ErrNotFound, key)
	}

	data, ok := out.Item[attrData].(*types.AttributeValueMemberB)
	if !ok {
		return nil, state{}, fmt.Errorf("dynamo: %s: missing %s attribute", key, attrData)
	}
	verAttr, ok := out.Item[attrVersion].(*types.AttributeValueMemberN)
	if !ok {
		return nil, state{}, fmt.Errorf("dynamo: %s: missing %s attribute", key, attrVersion)
	}
	ver, err := strconv.ParseUint(verAttr.Value, 10, 64)
	if err != nil {
		return nil, state{}, fmt.Errorf("dynamo: %s: parse version: %w", key, err)
	}

	s := state{version: ver, length: len(data.Value)}
	h.remember(key, s)
	return data.Value, s, nil
}

// store writes buf as version prev+1, conditional on prev. prev == 0 means
// the item must not exist.
func (h *Host) store(ctx context.Context, key model.StorageKey, buf []byte, prev uint64) error {
	item := itemKey(key)
	item[attrData] = &types.AttributeValueMemberB{Value: buf}
	item[attrVersion] = version(prev + 1)

	input := &dynamodb.PutItemInput{
		TableName: aws.String(h.table),
		Item:      item,
	}
	if prev == 0 {
		input.ConditionExpression = aws.String(condAbsent)
	} else {
		input.ConditionExpression = aws.String(condVersion)
		input.ExpressionAttributeValues = map[string]types.AttributeValue{":v": version(prev)}
	}

	if _, err := h.client.PutItem(ctx, input); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			h.forget(key)
			if prev == 0 {
				return fmt.Errorf("%w: %s", host.ErrExists, key)
			}
			h.logger.WarnContext(ctx, "conditional write lost", "key", key.String(), "version", prev)
			return fmt.Errorf("%w: %s: version %d is stale", host.ErrConflict, key, prev)
		}
		h.logger.ErrorContext(ctx, "put item failed", "key", key.String(), "error", err)
		return fmt.Errorf("dynamo: put %s: %w", key, err)
	}

	h.remember(key, state{version: prev + 1, length: len(buf)})
	return nil
}

// Allocate implements host.Host.
func (h *Host) Allocate(ctx context.Context, key model.StorageKey, initialLen int) ([]byte, error) {
	if err := h.checkLen(key, initialLen); err != nil {
		return nil, err
	}
	if err := h.store(ctx, key, make([]byte, initialLen), 0); err != nil {
		return nil, err
	}
	return make([]byte, initialLen), nil
}

// Resize implements host.Host.
func (h *Host) Resize(ctx context.Context, key model.StorageKey, newLen int) ([]byte, error) {
	if err := h.checkLen(key, newLen); err != nil {
		return nil, err
	}
	old, s, err := h.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, newLen)
	copy(buf, old)
	if err := h.store(ctx, key, buf, s.version); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read implements host.Host. The returned version becomes the base of the
// next conditional write.
func (h *Host) Read(ctx context.Context, key model.StorageKey) ([]byte, error) {
	buf, _, err := h.fetch(ctx, key)
	return buf, err
}

// Persist implements host.Host. It fails with host.ErrConflict when another
// writer stored the key after this host last read it.
func (h *Host) Persist(ctx context.Context, key model.StorageKey, buf []byte) error {
	s, ok := h.lookup(key)
	if !ok {
		var err error
		if _, s, err = h.fetch(ctx, key); err != nil {
			return err
		}
	}
	if s.length != len(buf) {
		return fmt.Errorf("%w: %s: stored %d, got %d", host.ErrLengthMismatch, key, s.length, len(buf))
	}
	return h.store(ctx, key, buf, s.version)
}

// Release implements host.Host.
func (h *Host) Release(ctx context.Context, key model.StorageKey) error {
	_, err := h.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(h.table),
		Key:       itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("dynamo: delete %s: %w", key, err)
	}
	h.forget(key)
	return nil
}

// Keys implements host.Lister with a paginated scan of the key attribute.
func (h *Host) Keys(ctx context.Context) ([]model.StorageKey, error) {
	p := dynamodb.NewScanPaginator(h.client, &dynamodb.ScanInput{
		TableName:            aws.String(h.table),
		ProjectionExpression: aws.String(attrKey),
	})
	var keys []model.StorageKey
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamo: scan: %w", err)
		}
		for _, item := range page.Items {
			s, ok := item[attrKey].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			k, err := model.ParseStorageKey(s.Value)
			if err != nil {
				continue
			}
			keys = append(keys, k)
		}
	}
	return keys, nil
}
