// Package nft reconstructs NFT state from a coin's puzzle reveal and
// solution. The puzzle of an NFT coin is a stack of curried layers
// (singleton, state, ownership, transfer program) and every field this
// package reports is recovered by structural matching on those layers, never
// by executing unknown code.
package nft

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/hashvale/chiagate/lib/chain/types"
	"github.com/hashvale/chiagate/lib/clvm"
)

// Tree hashes of the known puzzle mods. A puzzle whose layers do not hash to
// these is either not an NFT or a standard revision this gateway does not
// speak yet.
var (
	singletonModHashV11 = mustHash("7faa3253bfddd1e0decb0906b2dc6247bbc4cf608f58345d173adb63e8b47c9f")
	singletonModHashV1  = mustHash("24e044101e57b3d8c908b8a38ad57848afd29d3eecc439dba45f4412df4954fd")
	stateLayerModHash   = mustHash("a04d9f57764f54a43e4030befb4d80026e870519aaa66334aef8304f5d0393c2")
	ownershipModHash    = mustHash("c5abea79afaa001b5427dfa0c8cf42ca6f38f5841b78f9b3c252733eb2de2726")

	// DefaultMetadataUpdaterHash is the tree hash of the standard metadata
	// updater puzzle.
	DefaultMetadataUpdaterHash = mustHash("fe8a4b4e27a2e29a4d3fc7ce9d527adbcaccbab6ada3903ccf3ba9a769d2d78b")
)

// newOwnerConditionOpcode is the magic condition reserved for DID transfer.
const newOwnerConditionOpcode = -10

// maxRoyaltyBasisPoints caps the royalty at 100%.
const maxRoyaltyBasisPoints = 10000

// Errors of the extraction taxonomy. ErrNotASingleton and ErrNotAnNFT are
// expected negatives and are filtered silently by callers;
// ErrUnsupportedVersion means a recognized NFT of an unknown standard
// revision and should be counted for operator visibility.
var (
	ErrNotASingleton      = errors.New("puzzle is not a singleton")
	ErrNotAnNFT           = errors.New("singleton does not wrap an nft")
	ErrUnsupportedVersion = errors.New("unsupported nft standard revision")
)

// Info is the reconstructed state of one NFT, derived fresh per request and
// never persisted.
type Info struct {
	LauncherID          types.Bytes32 `json:"launcher_id"`
	CoinID              types.Bytes32 `json:"coin_id"`
	Owner               types.Bytes32 `json:"owner"`
	CurrentOwnerDID     string        `json:"current_owner_did,omitempty"`
	MetadataURIs        []string      `json:"metadata_uris"`
	MetadataHash        string        `json:"metadata_hash,omitempty"`
	MetadataUpdaterHash types.Bytes32 `json:"metadata_updater_hash"`
	LicenseURIs         []string      `json:"license_uris,omitempty"`
	LicenseHash         string        `json:"license_hash,omitempty"`
	EditionNumber       int64         `json:"edition_number,omitempty"`
	EditionTotal        int64         `json:"edition_total,omitempty"`
	RoyaltyAddress      types.Bytes32 `json:"royalty_address"`
	RoyaltyBasisPoints  int64         `json:"royalty_percentage"`
	TransferProgramHash types.Bytes32 `json:"transfer_program_hash"`
	Version             int           `json:"version"`
}

// Extract peels the puzzle layers of coin and reconstructs its NFT state.
// The solution is consulted only for the new-owner condition, which applies
// to the resulting coin. Errors follow the package taxonomy; a caller
// listing many coins traps them per coin.
func Extract(coin types.Coin, puzzle, solution clvm.Program) (*Info, error) {
	// layer 1: singleton
	mod, args, ok := puzzle.Uncurry()
	if !ok {
		return nil, ErrNotASingleton
	}

	version := 0

	mh := mod.TreeHash()

	switch {
	case mh == singletonModHashV11:
		version = 2
	case mh == singletonModHashV1:
		version = 1
	default:
		return nil, ErrNotASingleton
	}

	if len(args) != 2 {
		return nil, fmt.Errorf("%w: singleton curries %d params", ErrUnsupportedVersion, len(args))
	}

	launcherID, err := singletonLauncherID(args[0])
	if err != nil {
		return nil, err
	}

	info := &Info{
		LauncherID: launcherID,
		CoinID:     coin.ID(),
		Version:    version,
	}

	// layer 2: nft state layer
	stateMod, stateArgs, ok := args[1].Uncurry()
	if !ok || stateMod.TreeHash() != stateLayerModHash {
		return nil, ErrNotAnNFT
	}

	if len(stateArgs) != 4 {
		return nil, fmt.Errorf("%w: state layer curries %d params", ErrUnsupportedVersion, len(stateArgs))
	}

	if err := parseMetadata(stateArgs[1], info); err != nil {
		return nil, err
	}

	if h := stateArgs[2].Atom(); len(h) == 32 {
		copy(info.MetadataUpdaterHash[:], h)
	}

	// layer 3: ownership layer
	ownMod, ownArgs, ok := stateArgs[3].Uncurry()
	if !ok {
		return nil, fmt.Errorf("%w: state layer inner puzzle is not curried", ErrUnsupportedVersion)
	}

	if ownMod.TreeHash() != ownershipModHash {
		return nil, fmt.Errorf("%w: unknown ownership layer", ErrUnsupportedVersion)
	}

	if len(ownArgs) != 4 {
		return nil, fmt.Errorf("%w: ownership layer curries %d params", ErrUnsupportedVersion, len(ownArgs))
	}

	if did := ownArgs[1].Atom(); len(did) > 0 {
		info.CurrentOwnerDID = "0x" + hex.EncodeToString(did)
	}

	if err := parseTransferProgram(ownArgs[2], info); err != nil {
		return nil, err
	}

	info.Owner = ownArgs[3].TreeHash()

	// layer 4: solution-driven owner override for the resulting coin
	if did, found := newOwnerFromSolution(solution); found {
		if len(did) == 0 {
			info.CurrentOwnerDID = ""
		} else {
			info.CurrentOwnerDID = "0x" + hex.EncodeToString(did)
		}
	}

	return info, nil
}

// singletonLauncherID pulls the launcher id out of the curried singleton
// struct (mod_hash . (launcher_id . launcher_puzzle_hash)).
func singletonLauncherID(ss clvm.Program) (types.Bytes32, error) {
	var id types.Bytes32

	if ss.IsAtom() || ss.Rest().IsAtom() {
		return id, fmt.Errorf("%w: malformed singleton struct", ErrUnsupportedVersion)
	}

	raw := ss.Rest().First().Atom()
	if len(raw) != len(id) {
		return id, fmt.Errorf("%w: launcher id is %d bytes", ErrUnsupportedVersion, len(raw))
	}

	copy(id[:], raw)

	return id, nil
}

// parseMetadata reads the state layer metadata, a list of (key . value)
// pairs. An unrecognized key means a newer metadata revision: surfaced as
// ErrUnsupportedVersion, distinct from a plain non-NFT.
func parseMetadata(metadata clvm.Program, info *Info) error {
	entries, properList := metadata.ListItems()
	if !properList {
		return fmt.Errorf("%w: metadata is not a list", ErrUnsupportedVersion)
	}

	for _, entry := range entries {
		if entry.IsAtom() {
			return fmt.Errorf("%w: metadata entry is not a pair", ErrUnsupportedVersion)
		}

		key := string(entry.First().Atom())
		value := entry.Rest()

		switch key {
		case "u":
			uris, err := uriList(value)
			if err != nil {
				return err
			}

			info.MetadataURIs = uris
		case "lu":
			uris, err := uriList(value)
			if err != nil {
				return err
			}

			info.LicenseURIs = uris
		case "h":
			info.MetadataHash = hex.EncodeToString(value.Atom())
		case "lh":
			info.LicenseHash = hex.EncodeToString(value.Atom())
		case "sn":
			if v, ok := value.Int(); ok {
				info.EditionNumber = v
			}
		case "st":
			if v, ok := value.Int(); ok {
				info.EditionTotal = v
			}
		case "mu":
			if h := value.Atom(); len(h) == 32 {
				copy(info.MetadataUpdaterHash[:], h)
			}
		default:
			return fmt.Errorf("%w: metadata key %q", ErrUnsupportedVersion, key)
		}
	}

	return nil
}

func uriList(value clvm.Program) ([]string, error) {
	items, properList := value.ListItems()
	if !properList {
		return nil, fmt.Errorf("%w: uri list is improper", ErrUnsupportedVersion)
	}

	uris := make([]string, 0, len(items))

	for _, item := range items {
		if item.IsPair() {
			return nil, fmt.Errorf("%w: uri is not an atom", ErrUnsupportedVersion)
		}

		uris = append(uris, string(item.Atom()))
	}

	return uris, nil
}

// parseTransferProgram recovers the royalty parameters curried into the
// transfer program. A transfer program that is not curried at all is kept
// opaque: only its hash is reported.
func parseTransferProgram(tp clvm.Program, info *Info) error {
	info.TransferProgramHash = tp.TreeHash()

	_, args, ok := tp.Uncurry()
	if !ok {
		return nil
	}

	if len(args) != 3 {
		return fmt.Errorf("%w: transfer program curries %d params", ErrUnsupportedVersion, len(args))
	}

	if addr := args[1].Atom(); len(addr) == 32 {
		copy(info.RoyaltyAddress[:], addr)
	}

	bp, ok := args[2].Int()
	if !ok || bp < 0 || bp > maxRoyaltyBasisPoints {
		return fmt.Errorf("%w: royalty %d out of range", ErrUnsupportedVersion, bp)
	}

	info.RoyaltyBasisPoints = bp

	return nil
}

// newOwnerFromSolution digs through the nested solutions (singleton, state
// layer, ownership layer) to the quoted delegated conditions of the inner
// spend and looks for the new-owner condition. Solutions that do not have
// the standard quoted shape simply yield no override.
func newOwnerFromSolution(solution clvm.Program) ([]byte, bool) {
	items, _ := solution.ListItems()
	if len(items) < 3 {
		return nil, false
	}

	// singleton solution is (lineage_proof my_amount inner_solution)
	inner := items[2]

	// state layer and ownership layer each wrap one more solution list
	for i := 0; i < 2; i++ {
		if inner.IsAtom() {
			return nil, false
		}

		inner = inner.First()
	}

	p2Items, _ := inner.ListItems()
	if len(p2Items) < 2 {
		return nil, false
	}

	delegated := p2Items[1]
	if delegated.IsAtom() || !delegated.First().Equal(clvm.FromInt(1)) {
		return nil, false
	}

	conditions, _ := delegated.Rest().ListItems()
	for _, cond := range conditions {
		if cond.IsAtom() {
			continue
		}

		if op, ok := cond.First().Int(); !ok || op != newOwnerConditionOpcode {
			continue
		}

		if cond.Rest().IsAtom() {
			continue
		}

		return cond.Rest().First().Atom(), true
	}

	return nil, false
}

func mustHash(s string) types.Bytes32 {
	h, err := types.Bytes32FromHex(s)
	if err != nil {
		panic(err)
	}

	return h
}
