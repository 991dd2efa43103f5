// Command policy-cli is the offline counterpart to policyd: mint and verify
// capability tokens from the command line without running the HTTP daemon,
// the way the teacher's cmd/nhbctl offers a flag-subcommand CLI alongside
// its long-running daemons.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/agent-safe/splcap/internal/policy"
	"github.com/agent-safe/splcap/internal/splcrypto"
	"github.com/agent-safe/splcap/internal/token"
)

const (
	mintCommand   = "mint"
	verifyCommand = "verify"
	keygenCommand = "keygen"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case mintCommand:
		err = runMint(os.Args[2:])
	case verifyCommand:
		err = runVerify(os.Args[2:])
	case keygenCommand:
		err = runKeygen(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runMint(args []string) error {
	fs := flag.NewFlagSet(mintCommand, flag.ExitOnError)
	policyText := fs.String("policy", "", "SPL policy expression text")
	seedHex := fs.String("seed", "", "hex-encoded 32-byte Ed25519 private seed")
	merkleRoot := fs.String("merkle-root", "", "optional hex Merkle root the token commits to")
	hashChain := fs.String("hash-chain-commitment", "", "optional hex hash-chain head the token commits to")
	sealed := fs.Bool("sealed", false, "mark the token sealed")
	expires := fs.String("expires", "", "optional expiry string")
	popKey := fs.String("pop-key", "", "optional hex Ed25519 public key binding presentation-of-possession")
	fs.Parse(args)

	if *policyText == "" {
		return fmt.Errorf("-policy is required")
	}
	if *seedHex == "" {
		return fmt.Errorf("-seed is required")
	}
	t, err := token.Mint(*policyText, *seedHex, token.MintOptions{
		MerkleRoot:          *merkleRoot,
		HashChainCommitment: *hashChain,
		Sealed:              *sealed,
		Expires:             *expires,
		PopKey:              *popKey,
	})
	if err != nil {
		return err
	}
	return printJSON(t)
}

// runVerify implements spec.md §6's CLI contract: "verify <policy-file>
// <request-json>", exit 0 printing ALLOW/DENY, exit 1 with a diagnostic on
// stderr on any error. It is generalized to consume a full signed token by
// default (so signature/PoP checks are exercised, not just bare policy
// evaluation); --policy-only reproduces the literal spec driver, treating
// <token-file> as a bare SPL policy source instead of a token envelope.
func runVerify(args []string) error {
	fs := flag.NewFlagSet(verifyCommand, flag.ExitOnError)
	presentationSig := fs.String("presentation-signature", "", "hex presentation signature, required when the token carries a pop_key")
	maxGas := fs.Int64("max-gas", policy.DefaultMaxGas, "evaluator gas budget")
	policyOnly := fs.Bool("policy-only", false, "treat <token-file> as a bare SPL policy source (spec.md's verify <policy-file> <request-json> driver) instead of a signed token envelope")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 2 {
		return fmt.Errorf("usage: policy-cli verify [flags] <token-file|policy-file> <request-json>")
	}
	tokenPath, requestPath := rest[0], rest[1]

	reqVals, varVals, err := readRequestJSON(requestPath)
	if err != nil {
		return fmt.Errorf("read request json: %w", err)
	}

	var allow bool
	if *policyOnly {
		src, err := readInput(tokenPath)
		if err != nil {
			return fmt.Errorf("read policy: %w", err)
		}
		ast, err := policy.Parse(string(src))
		if err != nil {
			return err
		}
		env := policy.NewEnv()
		env.Req = reqVals
		env.Vars = varVals
		env.MaxGas = *maxGas
		result, err := policy.EvalPolicy(ast, env)
		if err != nil {
			return err
		}
		allow = result.Truthy()
	} else {
		data, err := readInput(tokenPath)
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		var t token.Token
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("parse token: %w", err)
		}
		result := token.Verify(&t, token.VerifyOptions{
			Req:                      reqVals,
			Vars:                     varVals,
			PresentationSignatureHex: *presentationSig,
			MaxGas:                   *maxGas,
		})
		if result.Error != nil {
			return result.Error
		}
		allow = result.Allow
	}

	if allow {
		fmt.Println("ALLOW")
	} else {
		fmt.Println("DENY")
	}
	return nil
}

// requestJSONFile is the <request-json> file's shape: "req" carries the
// incoming access request (actor, action, amount, ...), "vars" carries any
// policy-defined names the policy text itself doesn't already close over.
// A file with neither top-level key is treated as a flat req object, so a
// caller can pass the plain spec.md-style request object directly.
type requestJSONFile struct {
	Req  map[string]json.RawMessage `json:"req"`
	Vars map[string]json.RawMessage `json:"vars"`
}

func readRequestJSON(path string) (map[string]policy.Value, map[string]policy.Value, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, nil, err
	}
	var parsed requestJSONFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, nil, err
	}
	if len(parsed.Req) == 0 && len(parsed.Vars) == 0 {
		var flat map[string]json.RawMessage
		if err := json.Unmarshal(data, &flat); err == nil {
			parsed.Req = flat
		}
	}
	reqVals, err := policy.MapFromJSON(parsed.Req)
	if err != nil {
		return nil, nil, fmt.Errorf("req: %w", err)
	}
	varVals, err := policy.MapFromJSON(parsed.Vars)
	if err != nil {
		return nil, nil, fmt.Errorf("vars: %w", err)
	}
	return reqVals, varVals, nil
}

func runKeygen(args []string) error {
	fs := flag.NewFlagSet(keygenCommand, flag.ExitOnError)
	fs.Parse(args)

	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return fmt.Errorf("generate seed: %w", err)
	}
	pub, err := splcrypto.PublicFromSeed(seed)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{
		"private_seed_hex": hex.EncodeToString(seed),
		"public_key_hex":   hex.EncodeToString(pub),
	})
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return readAllStdin()
	}
	return os.ReadFile(path)
}

func readAllStdin() ([]byte, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}
	return buf, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage() {
	fmt.Println("policy-cli <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Printf("  %s      Mint a signed capability token\n", mintCommand)
	fmt.Printf("  %s    Verify a signed capability token\n", verifyCommand)
	fmt.Printf("  %s    Generate an Ed25519 signing keypair\n", keygenCommand)
}
