package extrinsic

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"testing"

	"go-substrate-client/codec"
	"go-substrate-client/metadata"
	"go-substrate-client/metadata/metadatatest"
	"go-substrate-client/signer"
	"go-substrate-client/types"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"
)

const (
	specVersion = 9430
	txVersion   = 24
)

var (
	bob     = bytes.Repeat([]byte{0xbb}, 32)
	genesis = types.Hash{0x91, 0xb1, 0x71, 0xbb}
	anchor  = types.Hash{0xaa, 0x01}
)

func snapshot(t *testing.T, opts metadatatest.Options) *metadata.Snapshot {
	m := metadatatest.Parsed(t, opts)
	return metadata.NewRegistry().Store(m, metadata.Version{SpecVersion: specVersion, TransactionVersion: txVersion})
}

func dest(account []byte) codec.Value {
	return codec.VariantOf("Id", codec.Named("", codec.Unnamed(codec.Bytes(account))))
}

func testSigner(t *testing.T) signer.Signer {
	s, err := signer.NewEd25519(bytes.Repeat([]byte{7}, signer.SeedLength))
	require.NoError(t, err)
	return s
}

func additional(hashes ...types.Hash) []byte {
	out := binary.LittleEndian.AppendUint32(nil, specVersion)
	out = binary.LittleEndian.AppendUint32(out, txVersion)
	for _, h := range hashes {
		out = append(out, h[:]...)
	}
	return out
}

func TestEncodeCallTransfer(t *testing.T) {
	s := snapshot(t, metadatatest.DefaultOptions())

	call, err := EncodeCall(s, "Balances", "transfer", dest(bob), codec.Uint(10000))
	require.NoError(t, err)

	data := call.Bytes()
	assert.Equal(t, []byte{metadatatest.BalancesIndex, 0, 0}, data[:3])
	assert.Equal(t, bob, data[3:35])
	assert.Equal(t, []byte{0x41, 0x9c}, data[35:])
	assert.Equal(t, s.Generation, call.Generation())

	decoded, err := DecodeCall(s, data)
	require.NoError(t, err)
	assert.Equal(t, "Balances", decoded.Pallet())
	assert.Equal(t, "transfer", decoded.Name())
	args := decoded.Args()
	require.Len(t, args, 2)
	assert.True(t, dest(bob).Equal(args[0]), args[0].String())
	amount, ok := args[1].Uint64()
	require.True(t, ok)
	assert.Equal(t, uint64(10000), amount)
}

func TestEncodeCallErrors(t *testing.T) {
	s := snapshot(t, metadatatest.DefaultOptions())

	_, err := EncodeCall(s, "Staking", "bond")
	assert.True(t, errors.Is(err, metadata.ErrUnknownModule))

	_, err = EncodeCall(s, "Balances", "burn")
	assert.True(t, errors.Is(err, metadata.ErrUnknownCall))

	_, err = EncodeCall(s, "Balances", "transfer", dest(bob))
	assert.True(t, errors.Is(err, ErrArgCountMismatch))

	_, err = EncodeCall(s, "Balances", "transfer", dest(bob), codec.Str("lots"))
	assert.True(t, errors.Is(err, ErrArgEncode))
	var argErr *ArgError
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, 1, argErr.Index)
	assert.Equal(t, "value", argErr.Name)
}

func TestDecodeCallErrors(t *testing.T) {
	s := snapshot(t, metadatatest.DefaultOptions())

	_, err := DecodeCall(s, []byte{metadatatest.BalancesIndex})
	assert.True(t, errors.Is(err, codec.ErrUnexpectedEOF))

	_, err = DecodeCall(s, []byte{99, 0})
	assert.True(t, errors.Is(err, metadata.ErrUnknownModule))

	_, err = DecodeCall(s, []byte{metadatatest.BalancesIndex, 99})
	assert.True(t, errors.Is(err, metadata.ErrUnknownCall))

	_, err = DecodeCall(s, []byte{metadatatest.SystemIndex, 0, 0x04, 'x', 0xff})
	assert.True(t, errors.Is(err, codec.ErrTrailingBytes))
}

func TestEraEncoding(t *testing.T) {
	for _, tc := range []struct {
		current, period uint64
		want            Era
		encoded         []byte
	}{
		{current: 42, period: 64, want: Era{Period: 64, Phase: 42}, encoded: []byte{0xa5, 0x02}},
		{current: 20000, period: 32768, want: Era{Period: 32768, Phase: 20000}, encoded: []byte{0x4e, 0x9c}},
		{current: 1000, period: 10, want: Era{Period: 16, Phase: 8}},
		{current: 5, period: 1, want: Era{Period: 4, Phase: 1}},
		{current: 7, period: 1 << 20, want: Era{Period: 1 << 16, Phase: 0}},
	} {
		era := NewMortalEra(tc.current, tc.period)
		assert.Equal(t, tc.want, era)

		b, err := era.Bytes()
		require.NoError(t, err)
		if tc.encoded != nil {
			assert.Equal(t, tc.encoded, b)
		}
		decoded, err := DecodeEra(codec.NewReader(b))
		require.NoError(t, err)
		assert.Equal(t, era, decoded, era.String())
	}

	b, err := Immortal.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, b)
	decoded, err := DecodeEra(codec.NewReader(b))
	require.NoError(t, err)
	assert.True(t, decoded.IsImmortal())
}

func TestEraWindow(t *testing.T) {
	era := NewMortalEra(1000, 10)
	assert.Equal(t, uint64(1000), era.Birth(1000))
	assert.Equal(t, uint64(1000), era.Birth(1010))
	assert.Equal(t, uint64(1016), era.Death(1010))
	assert.Equal(t, uint64(1016), era.Birth(1016))
}

func TestEraRejects(t *testing.T) {
	_, err := DecodeEra(codec.NewReader([]byte{0x10, 0x00}))
	assert.True(t, errors.Is(err, ErrInvalidEra))

	_, err = DecodeEra(codec.NewReader([]byte{0x05}))
	assert.True(t, errors.Is(err, codec.ErrUnexpectedEOF))

	_, err = Era{Period: 12, Phase: 1}.Bytes()
	assert.True(t, errors.Is(err, ErrInvalidEra))
	_, err = Era{Period: 16, Phase: 16}.Bytes()
	assert.True(t, errors.Is(err, ErrInvalidEra))
}

func TestBuildImmortalTransfer(t *testing.T) {
	s := snapshot(t, metadatatest.DefaultOptions())
	sgn := testSigner(t)

	call, err := EncodeCall(s, "Balances", "transfer", dest(bob), codec.Uint(10000))
	require.NoError(t, err)

	xt, err := NewBuilder(s, genesis).Build(call, sgn, Params{Nonce: 3})
	require.NoError(t, err)

	r := codec.NewReader(xt.Bytes())
	length, err := r.ReadLength()
	require.NoError(t, err)
	assert.Equal(t, r.Len(), length)

	body, err := r.ReadN(length)
	require.NoError(t, err)
	account := sgn.AccountID()
	assert.Equal(t, byte(0x84), body[0])
	assert.Equal(t, byte(0), body[1], "MultiAddress::Id")
	assert.Equal(t, account[:], body[2:34])
	assert.Equal(t, byte(signer.Ed25519), body[34])
	signature := body[35:99]
	assert.Equal(t, []byte{0x00, 0x0c, 0x00}, body[99:102], "era, nonce, tip")
	assert.Equal(t, call.Bytes(), body[102:])

	payload := append(call.Bytes(), 0x00, 0x0c, 0x00)
	payload = append(payload, additional(genesis, genesis)...)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(account[:]), payload, signature))

	assert.Equal(t, types.Hash(types.Blake2_256(xt.Bytes())), xt.Hash())
	assert.Equal(t, "0x"+hex.EncodeToString(xt.Bytes()), xt.Hex())
	assert.Equal(t, uint64(3), xt.Nonce())
	assert.Equal(t, 0, xt.Tip().Sign())
}

func TestBuiltValuesAreCopies(t *testing.T) {
	s := snapshot(t, metadatatest.DefaultOptions())
	amount := codec.Uint(10000)
	call, err := EncodeCall(s, "Balances", "transfer", dest(bob), amount)
	require.NoError(t, err)

	amount.Int.SetInt64(1)
	args := call.Args()
	args[1].Int.SetInt64(2)
	n, ok := call.Args()[1].Uint64()
	require.True(t, ok)
	assert.Equal(t, uint64(10000), n)

	tip := big.NewInt(5)
	xt, err := NewBuilder(s, genesis).Build(call, testSigner(t), Params{Tip: tip})
	require.NoError(t, err)
	tip.SetInt64(50)
	xt.Tip().SetInt64(500)
	assert.Equal(t, int64(5), xt.Tip().Int64())

	sig := xt.Signature()
	sig[0] ^= 0xff
	assert.NotEqual(t, sig, xt.Signature())
	assert.Same(t, call, xt.Call())
}

func TestBuildMortalTransfer(t *testing.T) {
	s := snapshot(t, metadatatest.DefaultOptions())
	b := NewBuilder(s, genesis)
	call, err := EncodeCall(s, "Balances", "transfer", dest(bob), codec.Uint(1))
	require.NoError(t, err)

	era := NewMortalEra(42, 64)
	_, err = b.Build(call, testSigner(t), Params{Era: era})
	assert.True(t, errors.Is(err, ErrMissingAnchor))

	payload, err := b.SigningPayload(call, Params{Era: era, BlockHash: anchor, Nonce: 1, Tip: big.NewInt(2)})
	require.NoError(t, err)

	want := append(call.Bytes(), 0xa5, 0x02, 0x04, 0x08)
	want = append(want, additional(genesis, anchor)...)
	assert.Equal(t, want, payload)
}

func TestLongPayloadIsHashed(t *testing.T) {
	s := snapshot(t, metadatatest.DefaultOptions())
	call, err := EncodeCall(s, "System", "remark", codec.Bytes(bytes.Repeat([]byte{1}, 300)))
	require.NoError(t, err)

	payload, err := NewBuilder(s, genesis).SigningPayload(call, Params{})
	require.NoError(t, err)

	raw := append(call.Bytes(), 0x00, 0x00, 0x00)
	raw = append(raw, additional(genesis, genesis)...)
	hash := types.Blake2_256(raw)
	assert.Equal(t, hash[:], payload)
}

func TestExtensionsFollowMetadata(t *testing.T) {
	opts := metadatatest.DefaultOptions()
	opts.SignedExtensions = []string{"CheckSpecVersion", "ChargeAssetTxPayment", "CheckMetadataHash", "PrevalidateAttests"}
	s := snapshot(t, opts)

	call, err := EncodeCall(s, "System", "remark", codec.Bytes([]byte("x")))
	require.NoError(t, err)

	payload, err := NewBuilder(s, genesis).SigningPayload(call, Params{Tip: big.NewInt(5)})
	require.NoError(t, err)

	want := append(call.Bytes(), 0x14, 0x00, 0x00)
	want = binary.LittleEndian.AppendUint32(want, specVersion)
	want = append(want, 0x00)
	assert.Equal(t, want, payload)
}

func TestUnsupportedExtension(t *testing.T) {
	opts := metadatatest.DefaultOptions()
	opts.SignedExtensions = append([]string{"UnsupportedExtension"}, metadatatest.DefaultSignedExtensions...)
	s := snapshot(t, opts)

	call, err := EncodeCall(s, "System", "remark", codec.Bytes(nil))
	require.NoError(t, err)
	_, err = NewBuilder(s, genesis).Build(call, testSigner(t), Params{})
	assert.True(t, errors.Is(err, ErrUnsupportedExtension))
}

func TestBuildRejectsStaleCall(t *testing.T) {
	registry := metadata.NewRegistry()
	version := metadata.Version{SpecVersion: specVersion, TransactionVersion: txVersion}
	old := registry.Store(metadatatest.Parsed(t, metadatatest.DefaultOptions()), version)

	call, err := EncodeCall(old, "Balances", "transfer", dest(bob), codec.Uint(1))
	require.NoError(t, err)

	opts := metadatatest.DefaultOptions()
	opts.BalancesIndex = 6
	version.SpecVersion++
	current := registry.Store(metadatatest.Parsed(t, opts), version)
	require.NotEqual(t, old.Generation, current.Generation)

	_, err = NewBuilder(current, genesis).Build(call, testSigner(t), Params{})
	assert.True(t, errors.Is(err, metadata.ErrStaleMetadata))
}

func TestBuildWithOtherSchemes(t *testing.T) {
	s := snapshot(t, metadatatest.DefaultOptions())
	call, err := EncodeCall(s, "System", "remark", codec.Bytes([]byte("hi")))
	require.NoError(t, err)

	for _, scheme := range []signer.Scheme{signer.Sr25519, signer.Ecdsa} {
		sgn, err := signer.New(scheme, bytes.Repeat([]byte{3}, signer.SeedLength))
		require.NoError(t, err)

		xt, err := NewBuilder(s, genesis).Build(call, sgn, Params{})
		require.NoError(t, err, scheme.String())

		r := codec.NewReader(xt.Bytes())
		_, err = r.ReadLength()
		require.NoError(t, err)
		body, err := r.ReadN(r.Len())
		require.NoError(t, err)
		assert.Equal(t, byte(scheme), body[34], scheme.String())
		assert.Equal(t, 34+1+scheme.SignatureLength()+3+len(call.Bytes()), len(body), scheme.String())
	}
}
