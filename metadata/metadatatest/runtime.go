package metadatatest

import (
	"encoding/binary"
	"fmt"
	"testing"

	"go-substrate-client/codec"
	"go-substrate-client/metadata"

	"github.com/stretchr/testify/require"
)

const (
	SystemIndex   uint8 = 0
	UtilityIndex  uint8 = 26
	BalancesIndex uint8 = 5

	// ExistentialDeposit is the value of the Balances.ExistentialDeposit constant
	ExistentialDeposit uint64 = 100_000_000_000_000
)

// DefaultSignedExtensions mirrors the extension list of a stock node template
var DefaultSignedExtensions = []string{
	"CheckNonZeroSender",
	"CheckSpecVersion",
	"CheckTxVersion",
	"CheckGenesis",
	"CheckMortality",
	"CheckNonce",
	"CheckWeight",
	"ChargeTransactionPayment",
}

type Options struct {
	Version       uint8
	BalancesIndex uint8

	// SignedExtensions lists extension identifiers in order. Besides the
	// defaults it accepts ChargeAssetTxPayment, CheckMetadataHash, a zero
	// sized "PrevalidateAttests" and an "UnsupportedExtension" carrying data.
	SignedExtensions []string

	// UnnamedEventFields declares System and Balances events with tuple
	// fields, as older runtimes do
	UnnamedEventFields bool
}

func DefaultOptions() Options {
	return Options{
		Version:          metadata.SupportedVersion,
		BalancesIndex:    BalancesIndex,
		SignedExtensions: DefaultSignedExtensions,
	}
}

// Default returns the blob built from DefaultOptions
func Default() []byte {
	return Build(DefaultOptions())
}

// Parsed builds and parses a runtime, failing the test on error
func Parsed(t testing.TB, opts Options) *metadata.Metadata {
	t.Helper()
	m, err := metadata.Parse(Build(opts))
	require.NoError(t, err)
	return m
}

// Build assembles a runtime with System, Utility and Balances pallets
func Build(opts Options) []byte {
	b := NewBuilder()
	b.Version = opts.Version

	var (
		boolT = b.Type(nil, Primitive(codec.PrimBool))
		u8    = b.Type(nil, Primitive(codec.PrimU8))
		u16   = b.Type(nil, Primitive(codec.PrimU16))
		u32   = b.Type(nil, Primitive(codec.PrimU32))
		u64   = b.Type(nil, Primitive(codec.PrimU64))
		u128  = b.Type(nil, Primitive(codec.PrimU128))
		unit  = b.Type(nil, Tuple())

		bytes     = b.Type(nil, Sequence(u8))
		bytes8    = b.Type(nil, Array(8, u8))
		bytes20   = b.Type(nil, Array(20, u8))
		bytes32   = b.Type(nil, Array(32, u8))
		bytes64   = b.Type(nil, Array(64, u8))
		bytes65   = b.Type(nil, Array(65, u8))
		bytes4    = b.Type(nil, Array(4, u8))
		compactU  = b.Type(nil, Compact(u32))
		compactU6 = b.Type(nil, Compact(u64))
		compactB  = b.Type(nil, Compact(u128))
		compactN  = b.Type(nil, Compact(unit))

		accountID = b.Type([]string{"sp_core", "crypto", "AccountId32"}, Composite(Field{Type: bytes32, TypeName: "[u8; 32]"}))
		h256      = b.Type([]string{"primitive_types", "H256"}, Composite(Field{Type: bytes32, TypeName: "[u8; 32]"}))
		optionU32 = b.Type([]string{"Option"}, Variants(
			Variant{Name: "None", Index: 0},
			Variant{Name: "Some", Index: 1, Fields: []Field{{Type: u32}}},
		), Param{Name: "T", Type: Ref(u32)})
		optionH256 = b.Type([]string{"Option"}, Variants(
			Variant{Name: "None", Index: 0},
			Variant{Name: "Some", Index: 1, Fields: []Field{{Type: bytes32}}},
		), Param{Name: "T", Type: Ref(bytes32)})
	)

	address := b.Type([]string{"sp_runtime", "multiaddress", "MultiAddress"}, Variants(
		Variant{Name: "Id", Index: 0, Fields: []Field{{Type: accountID, TypeName: "AccountId"}}},
		Variant{Name: "Index", Index: 1, Fields: []Field{{Type: compactN, TypeName: "AccountIndex"}}},
		Variant{Name: "Raw", Index: 2, Fields: []Field{{Type: bytes, TypeName: "Vec<u8>"}}},
		Variant{Name: "Address32", Index: 3, Fields: []Field{{Type: bytes32, TypeName: "[u8; 32]"}}},
		Variant{Name: "Address20", Index: 4, Fields: []Field{{Type: bytes20, TypeName: "[u8; 20]"}}},
	), Param{Name: "AccountId", Type: Ref(accountID)}, Param{Name: "AccountIndex", Type: Ref(unit)})

	signature := b.Type([]string{"sp_runtime", "MultiSignature"}, Variants(
		Variant{Name: "Ed25519", Index: 0, Fields: []Field{{Type: bytes64}}},
		Variant{Name: "Sr25519", Index: 1, Fields: []Field{{Type: bytes64}}},
		Variant{Name: "Ecdsa", Index: 2, Fields: []Field{{Type: bytes65}}},
	))

	weight := b.Type([]string{"sp_weights", "weight_v2", "Weight"}, Composite(
		Field{Name: "ref_time", Type: compactU6, TypeName: "u64"},
		Field{Name: "proof_size", Type: compactU6, TypeName: "u64"},
	))
	dispatchClass := b.Type([]string{"frame_support", "dispatch", "DispatchClass"}, Variants(
		Variant{Name: "Normal", Index: 0},
		Variant{Name: "Operational", Index: 1},
		Variant{Name: "Mandatory", Index: 2},
	))
	pays := b.Type([]string{"frame_support", "dispatch", "Pays"}, Variants(
		Variant{Name: "Yes", Index: 0},
		Variant{Name: "No", Index: 1},
	))
	dispatchInfo := b.Type([]string{"frame_support", "dispatch", "DispatchInfo"}, Composite(
		Field{Name: "weight", Type: weight, TypeName: "Weight"},
		Field{Name: "class", Type: dispatchClass, TypeName: "DispatchClass"},
		Field{Name: "pays_fee", Type: pays, TypeName: "Pays"},
	))
	moduleError := b.Type([]string{"sp_runtime", "ModuleError"}, Composite(
		Field{Name: "index", Type: u8, TypeName: "u8"},
		Field{Name: "error", Type: bytes4, TypeName: "[u8; MAX_MODULE_ERROR_ENCODED_SIZE]"},
	))
	tokenError := b.Type([]string{"sp_runtime", "TokenError"}, Variants(
		Variant{Name: "FundsUnavailable", Index: 0},
		Variant{Name: "OnlyProvider", Index: 1},
		Variant{Name: "BelowMinimum", Index: 2},
		Variant{Name: "CannotCreate", Index: 3},
		Variant{Name: "UnknownAsset", Index: 4},
		Variant{Name: "Frozen", Index: 5},
		Variant{Name: "Unsupported", Index: 6},
	))
	dispatchError := b.Type([]string{"sp_runtime", "DispatchError"}, Variants(
		Variant{Name: "Other", Index: 0},
		Variant{Name: "CannotLookup", Index: 1},
		Variant{Name: "BadOrigin", Index: 2},
		Variant{Name: "Module", Index: 3, Fields: []Field{{Type: moduleError, TypeName: "ModuleError"}}},
		Variant{Name: "ConsumerRemaining", Index: 4},
		Variant{Name: "NoProviders", Index: 5},
		Variant{Name: "TooManyConsumers", Index: 6},
		Variant{Name: "Token", Index: 7, Fields: []Field{{Type: tokenError, TypeName: "TokenError"}}},
	))

	// RuntimeCall is recursive through Utility.batch
	runtimeCall := b.Reserve()
	callSeq := b.Type(nil, Sequence(runtimeCall))

	systemCall := b.Type([]string{"frame_system", "pallet", "Call"}, Variants(
		Variant{Name: "remark", Index: 0, Fields: []Field{{Name: "remark", Type: bytes, TypeName: "Vec<u8>"}},
			Docs: []string{"Make some on-chain remark."}},
		Variant{Name: "remark_with_event", Index: 7, Fields: []Field{{Name: "remark", Type: bytes, TypeName: "Vec<u8>"}}},
	))
	utilityCall := b.Type([]string{"pallet_utility", "pallet", "Call"}, Variants(
		Variant{Name: "batch", Index: 0, Fields: []Field{{Name: "calls", Type: callSeq, TypeName: "Vec<<T as Config>::RuntimeCall>"}}},
		Variant{Name: "batch_all", Index: 2, Fields: []Field{{Name: "calls", Type: callSeq, TypeName: "Vec<<T as Config>::RuntimeCall>"}}},
	))
	balancesCall := b.Type([]string{"pallet_balances", "pallet", "Call"}, Variants(
		Variant{Name: "transfer", Index: 0, Fields: []Field{
			{Name: "dest", Type: address, TypeName: "AccountIdLookupOf<T>"},
			{Name: "value", Type: compactB, TypeName: "T::Balance"},
		}},
		Variant{Name: "transfer_keep_alive", Index: 3, Fields: []Field{
			{Name: "dest", Type: address, TypeName: "AccountIdLookupOf<T>"},
			{Name: "value", Type: compactB, TypeName: "T::Balance"},
		}},
		Variant{Name: "transfer_all", Index: 4, Fields: []Field{
			{Name: "dest", Type: address, TypeName: "AccountIdLookupOf<T>"},
			{Name: "keep_alive", Type: boolT, TypeName: "bool"},
		}},
	))
	b.Define(runtimeCall, []string{"node_runtime", "RuntimeCall"}, Variants(
		Variant{Name: "System", Index: SystemIndex, Fields: []Field{{Type: systemCall}}},
		Variant{Name: "Utility", Index: UtilityIndex, Fields: []Field{{Type: utilityCall}}},
		Variant{Name: "Balances", Index: opts.BalancesIndex, Fields: []Field{{Type: balancesCall}}},
	))

	eventField := func(name string) string {
		if opts.UnnamedEventFields {
			return ""
		}
		return name
	}
	systemEvent := b.Type([]string{"frame_system", "pallet", "Event"}, Variants(
		Variant{Name: "ExtrinsicSuccess", Index: 0, Fields: []Field{
			{Name: eventField("dispatch_info"), Type: dispatchInfo, TypeName: "DispatchInfo"},
		}, Docs: []string{"An extrinsic completed successfully."}},
		Variant{Name: "ExtrinsicFailed", Index: 1, Fields: []Field{
			{Name: eventField("dispatch_error"), Type: dispatchError, TypeName: "DispatchError"},
			{Name: eventField("dispatch_info"), Type: dispatchInfo, TypeName: "DispatchInfo"},
		}, Docs: []string{"An extrinsic failed."}},
		Variant{Name: "CodeUpdated", Index: 2},
		Variant{Name: "NewAccount", Index: 3, Fields: []Field{{Name: eventField("account"), Type: accountID, TypeName: "T::AccountId"}}},
		Variant{Name: "KilledAccount", Index: 4, Fields: []Field{{Name: eventField("account"), Type: accountID, TypeName: "T::AccountId"}}},
		Variant{Name: "Remarked", Index: 5, Fields: []Field{
			{Name: eventField("sender"), Type: accountID, TypeName: "T::AccountId"},
			{Name: eventField("hash"), Type: h256, TypeName: "T::Hash"},
		}},
	))
	utilityEvent := b.Type([]string{"pallet_utility", "pallet", "Event"}, Variants(
		Variant{Name: "BatchInterrupted", Index: 0, Fields: []Field{
			{Name: "index", Type: u32, TypeName: "u32"},
			{Name: "error", Type: dispatchError, TypeName: "DispatchError"},
		}},
		Variant{Name: "BatchCompleted", Index: 1},
		Variant{Name: "ItemCompleted", Index: 3},
	))
	balancesEvent := b.Type([]string{"pallet_balances", "pallet", "Event"}, Variants(
		Variant{Name: "Endowed", Index: 0, Fields: []Field{
			{Name: eventField("account"), Type: accountID, TypeName: "T::AccountId"},
			{Name: eventField("free_balance"), Type: u128, TypeName: "T::Balance"},
		}},
		Variant{Name: "DustLost", Index: 1, Fields: []Field{
			{Name: eventField("account"), Type: accountID, TypeName: "T::AccountId"},
			{Name: eventField("amount"), Type: u128, TypeName: "T::Balance"},
		}},
		Variant{Name: "Transfer", Index: 2, Fields: []Field{
			{Name: eventField("from"), Type: accountID, TypeName: "T::AccountId"},
			{Name: eventField("to"), Type: accountID, TypeName: "T::AccountId"},
			{Name: eventField("amount"), Type: u128, TypeName: "T::Balance"},
		}, Docs: []string{"Transfer succeeded."}},
		Variant{Name: "Reserved", Index: 4, Fields: []Field{
			{Name: eventField("who"), Type: accountID, TypeName: "T::AccountId"},
			{Name: eventField("amount"), Type: u128, TypeName: "T::Balance"},
		}},
		Variant{Name: "Deposit", Index: 7, Fields: []Field{
			{Name: eventField("who"), Type: accountID, TypeName: "T::AccountId"},
			{Name: eventField("amount"), Type: u128, TypeName: "T::Balance"},
		}},
		Variant{Name: "Withdraw", Index: 8, Fields: []Field{
			{Name: eventField("who"), Type: accountID, TypeName: "T::AccountId"},
			{Name: eventField("amount"), Type: u128, TypeName: "T::Balance"},
		}},
	))
	runtimeEvent := b.Type([]string{"node_runtime", "RuntimeEvent"}, Variants(
		Variant{Name: "System", Index: SystemIndex, Fields: []Field{{Type: systemEvent}}},
		Variant{Name: "Utility", Index: UtilityIndex, Fields: []Field{{Type: utilityEvent}}},
		Variant{Name: "Balances", Index: opts.BalancesIndex, Fields: []Field{{Type: balancesEvent}}},
	))

	phase := b.Type([]string{"frame_system", "Phase"}, Variants(
		Variant{Name: "ApplyExtrinsic", Index: 0, Fields: []Field{{Type: u32, TypeName: "u32"}}},
		Variant{Name: "Finalization", Index: 1},
		Variant{Name: "Initialization", Index: 2},
	))
	h256Seq := b.Type(nil, Sequence(h256))
	eventRecord := b.Type([]string{"frame_system", "EventRecord"}, Composite(
		Field{Name: "phase", Type: phase, TypeName: "Phase"},
		Field{Name: "event", Type: runtimeEvent, TypeName: "E"},
		Field{Name: "topics", Type: h256Seq, TypeName: "Vec<T>"},
	))
	eventRecords := b.Type(nil, Sequence(eventRecord))

	systemError := b.Type([]string{"frame_system", "pallet", "Error"}, Variants(
		Variant{Name: "InvalidSpecName", Index: 0},
		Variant{Name: "SpecVersionNeedsToIncrease", Index: 1},
		Variant{Name: "FailedToExtractRuntimeVersion", Index: 2},
		Variant{Name: "NonDefaultComposite", Index: 3},
		Variant{Name: "NonZeroRefCount", Index: 4},
		Variant{Name: "CallFiltered", Index: 5},
	))
	utilityError := b.Type([]string{"pallet_utility", "pallet", "Error"}, Variants(
		Variant{Name: "TooManyCalls", Index: 0, Docs: []string{"Too many calls batched."}},
	))
	balancesError := b.Type([]string{"pallet_balances", "pallet", "Error"}, Variants(
		Variant{Name: "VestingBalance", Index: 0, Docs: []string{"Vesting balance too high to send value"}},
		Variant{Name: "LiquidityRestrictions", Index: 1, Docs: []string{"Account liquidity restrictions prevent withdrawal"}},
		Variant{Name: "InsufficientBalance", Index: 2, Docs: []string{"Balance too low to send value"}},
		Variant{Name: "ExistentialDeposit", Index: 3, Docs: []string{"Value too low to create account due to existential deposit"}},
		Variant{Name: "KeepAlive", Index: 4, Docs: []string{"Transfer/payment would kill account"}},
		Variant{Name: "ExistingVestingSchedule", Index: 5},
		Variant{Name: "DeadAccount", Index: 6, Docs: []string{"Beneficiary account must pre-exist"}},
		Variant{Name: "TooManyReserves", Index: 7},
	))

	accountData := b.Type([]string{"pallet_balances", "types", "AccountData"}, Composite(
		Field{Name: "free", Type: u128, TypeName: "Balance"},
		Field{Name: "reserved", Type: u128, TypeName: "Balance"},
		Field{Name: "frozen", Type: u128, TypeName: "Balance"},
		Field{Name: "flags", Type: u128, TypeName: "ExtraFlags"},
	))
	accountInfo := b.Type([]string{"frame_system", "AccountInfo"}, Composite(
		Field{Name: "nonce", Type: u32, TypeName: "Nonce"},
		Field{Name: "consumers", Type: u32, TypeName: "RefCount"},
		Field{Name: "providers", Type: u32, TypeName: "RefCount"},
		Field{Name: "sufficients", Type: u32, TypeName: "RefCount"},
		Field{Name: "data", Type: accountData, TypeName: "AccountData"},
	))
	reasons := b.Type([]string{"pallet_balances", "types", "Reasons"}, Variants(
		Variant{Name: "Fee", Index: 0},
		Variant{Name: "Misc", Index: 1},
		Variant{Name: "All", Index: 2},
	))
	balanceLock := b.Type([]string{"pallet_balances", "types", "BalanceLock"}, Composite(
		Field{Name: "id", Type: bytes8, TypeName: "LockIdentifier"},
		Field{Name: "amount", Type: u128, TypeName: "Balance"},
		Field{Name: "reasons", Type: reasons, TypeName: "Reasons"},
	))
	lockSeq := b.Type(nil, Sequence(balanceLock))
	locks := b.Type([]string{"bounded_collections", "weak_bounded_vec", "WeakBoundedVec"}, Composite(
		Field{Type: lockSeq, TypeName: "Vec<T>"},
	))

	extensions := b.signedExtensions(opts.SignedExtensions, signedExtensionTypes{
		unit: unit, u32: u32, h256: h256, compactNonce: compactU, compactBalance: compactB,
		optionU32: optionU32, optionHash: optionH256,
	})
	extra := make([]uint32, len(extensions))
	for i, se := range extensions {
		extra[i] = se.Type
	}
	extraTuple := b.Type(nil, Tuple(extra...))

	b.ExtrinsicType = b.Type([]string{"sp_runtime", "generic", "unchecked_extrinsic", "UncheckedExtrinsic"},
		Composite(Field{Type: bytes}),
		Param{Name: "Address", Type: Ref(address)},
		Param{Name: "Call", Type: Ref(runtimeCall)},
		Param{Name: "Signature", Type: Ref(signature)},
		Param{Name: "Extra", Type: Ref(extraTuple)},
	)
	b.SignedExtensions = extensions
	b.RuntimeType = b.Type([]string{"node_runtime", "Runtime"}, Composite())

	b.Pallets = []Pallet{
		{
			Name:          "System",
			Index:         SystemIndex,
			StoragePrefix: "System",
			Storage: []StorageEntry{
				{
					Name: "Account", Modifier: metadata.Default,
					Hashers: []metadata.Hasher{metadata.Blake2_128Concat}, Key: accountID, Value: accountInfo,
					Default: make([]byte, 16+64), Docs: []string{" The full account information for a particular account ID."},
				},
				{Name: "Number", Modifier: metadata.Default, Value: u32, Default: []byte{0, 0, 0, 0}},
				{
					Name: "BlockHash", Modifier: metadata.Default,
					Hashers: []metadata.Hasher{metadata.Twox64Concat}, Key: u32, Value: h256, Default: make([]byte, 32),
				},
				{Name: "Events", Modifier: metadata.Default, Value: eventRecords, Default: []byte{0}},
			},
			Calls:  Ref(systemCall),
			Events: Ref(systemEvent),
			Errors: Ref(systemError),
			Constants: []Constant{
				{Name: "BlockHashCount", Type: u32, Value: le32(2400)},
				{Name: "SS58Prefix", Type: u16, Value: []byte{42, 0}},
			},
		},
		{
			Name:   "Utility",
			Index:  UtilityIndex,
			Calls:  Ref(utilityCall),
			Events: Ref(utilityEvent),
			Errors: Ref(utilityError),
		},
		{
			Name:          "Balances",
			Index:         opts.BalancesIndex,
			StoragePrefix: "Balances",
			Storage: []StorageEntry{
				{Name: "TotalIssuance", Modifier: metadata.Default, Value: u128, Default: make([]byte, 16)},
				{
					Name: "Locks", Modifier: metadata.Default,
					Hashers: []metadata.Hasher{metadata.Blake2_128Concat}, Key: accountID, Value: locks, Default: []byte{0},
				},
			},
			Calls:  Ref(balancesCall),
			Events: Ref(balancesEvent),
			Errors: Ref(balancesError),
			Constants: []Constant{
				{Name: "ExistentialDeposit", Type: u128, Value: le128(ExistentialDeposit),
					Docs: []string{" The minimum amount required to keep an account open."}},
				{Name: "MaxLocks", Type: u32, Value: le32(50)},
			},
		},
	}
	return b.Build()
}

type signedExtensionTypes struct {
	unit, u32, h256, compactNonce, compactBalance, optionU32, optionHash uint32
}

func (b *Builder) signedExtensions(ids []string, t signedExtensionTypes) []SignedExtension {
	var out []SignedExtension
	for _, id := range ids {
		se := SignedExtension{Identifier: id, Type: t.unit, Additional: t.unit}
		switch id {
		case "CheckNonZeroSender", "CheckWeight", "PrevalidateAttests":
		case "CheckSpecVersion", "CheckTxVersion":
			se.Additional = t.u32
		case "CheckGenesis":
			se.Additional = t.h256
		case "CheckMortality":
			se.Type = b.era()
			se.Additional = t.h256
		case "CheckNonce":
			se.Type = b.Type([]string{"frame_system", "extensions", "check_nonce", "CheckNonce"},
				Composite(Field{Type: t.compactNonce, TypeName: "T::Nonce"}))
		case "ChargeTransactionPayment":
			se.Type = b.Type([]string{"pallet_transaction_payment", "ChargeTransactionPayment"},
				Composite(Field{Type: t.compactBalance, TypeName: "BalanceOf<T>"}))
		case "ChargeAssetTxPayment":
			se.Type = b.Type([]string{"pallet_asset_tx_payment", "ChargeAssetTxPayment"}, Composite(
				Field{Name: "tip", Type: t.compactBalance, TypeName: "BalanceOf<T>"},
				Field{Name: "asset_id", Type: t.optionU32, TypeName: "Option<AssetId>"},
			))
		case "CheckMetadataHash":
			mode := b.Type([]string{"frame_metadata_hash_extension", "Mode"}, Variants(
				Variant{Name: "Disabled", Index: 0},
				Variant{Name: "Enabled", Index: 1},
			))
			se.Type = b.Type([]string{"frame_metadata_hash_extension", "CheckMetadataHash"},
				Composite(Field{Name: "mode", Type: mode, TypeName: "Mode"}))
			se.Additional = t.optionHash
		case "UnsupportedExtension":
			se.Type = t.u32
		default:
			panic(fmt.Sprintf("metadatatest: unknown signed extension %s", id))
		}
		out = append(out, se)
	}
	return out
}

// era registers sp_runtime::generic::era::Era: Immortal followed by the 255
// one byte prefixed Mortal variants
func (b *Builder) era() uint32 {
	u8 := b.Type(nil, Primitive(codec.PrimU8))
	variants := []Variant{{Name: "Immortal", Index: 0}}
	for i := 1; i < 256; i++ {
		variants = append(variants, Variant{Name: fmt.Sprintf("Mortal%d", i), Index: uint8(i), Fields: []Field{{Type: u8}}})
	}
	return b.Type([]string{"sp_runtime", "generic", "era", "Era"}, Variants(variants...))
}

func le32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func le128(v uint64) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out, v)
	return out
}
