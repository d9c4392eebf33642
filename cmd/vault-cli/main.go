package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hustletexas/cyber-arcade-verse-rally/cmd/internal/passphrase"
	"github.com/hustletexas/cyber-arcade-verse-rally/config"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/payout"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/vault"
	"github.com/hustletexas/cyber-arcade-verse-rally/services/vaultd"
	"github.com/hustletexas/cyber-arcade-verse-rally/services/vaultd/audit"
)

const passphraseEnv = "ARCADE_KEYSTORE_PASSPHRASE"

var (
	newPassphrase = func(confirm bool) interface{ Get() (string, error) } {
		if confirm {
			return passphrase.NewSource(passphraseEnv, passphrase.WithConfirmation())
		}
		return passphrase.NewSource(passphraseEnv)
	}
	keystoreParams = crypto.StandardKeystore
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "address":
		return runAddress(args[1:], stdout, stderr)
	case "sign-payout":
		return runSignPayout(args[1:], stdout, stderr)
	case "issue-token":
		return runIssueToken(args[1:], stdout, stderr)
	case "export-audit":
		return runExportAudit(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.Join([]string{
		"Usage: vault-cli <command> [flags]",
		"",
		"Commands:",
		"  keygen        --out <keystore>                      create a new attestor or operator key",
		"  address       --keystore <file> | --key <hex>       print the bech32 address",
		"  sign-payout   --keystore <file> --tournament <id> --recipient <addr> --amount <n> --nonce <n> [--deadline <unix>] [--domain vault]",
		"  issue-token   --secret-file <file> --subject <addr> [--ttl 1h] [--issuer] [--audience]",
		"  export-audit  --dsn <dsn> --out <file.parquet> [--driver sqlite] [--after <index>]",
		"",
		"Keystore passphrases are read from " + passphraseEnv + " or prompted for.",
	}, "\n")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func fail(stderr io.Writer, format string, args ...interface{}) int {
	fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
	return 1
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	out := fs.String("out", "", "keystore file to write")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*out) == "" {
		return fail(stderr, "--out is required")
	}
	if _, err := os.Stat(*out); err == nil {
		return fail(stderr, "%s already exists", *out)
	}
	pass, err := newPassphrase(true).Get()
	if err != nil {
		return fail(stderr, "%v", err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fail(stderr, "generate key: %v", err)
	}
	if err := crypto.SaveToKeystore(*out, key, pass, keystoreParams); err != nil {
		return fail(stderr, "write keystore: %v", err)
	}
	fmt.Fprintln(stdout, crypto.FormatPrincipal(key.PubKey().Principal()))
	return 0
}

func loadKey(keystorePath, keyHex string) (*crypto.PrivateKey, error) {
	switch {
	case strings.TrimSpace(keyHex) != "":
		return crypto.PrivateKeyFromHex(keyHex)
	case strings.TrimSpace(keystorePath) != "":
		pass, err := newPassphrase(false).Get()
		if err != nil {
			return nil, err
		}
		return crypto.LoadFromKeystore(keystorePath, pass)
	default:
		return nil, fmt.Errorf("--keystore or --key is required")
	}
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("address", stderr)
	keystorePath := fs.String("keystore", "", "keystore file")
	keyHex := fs.String("key", "", "hex private key")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadKey(*keystorePath, *keyHex)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	fmt.Fprintln(stdout, crypto.FormatPrincipal(key.PubKey().Principal()))
	return 0
}

func runSignPayout(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("sign-payout", stderr)
	var (
		keystorePath string
		keyHex       string
		domain       string
		scope        string
		recipientStr string
		amountStr    string
		nonce        uint64
		deadline     int64
	)
	fs.StringVar(&keystorePath, "keystore", "", "attestor keystore file")
	fs.StringVar(&keyHex, "key", "", "attestor hex private key")
	fs.StringVar(&domain, "domain", vault.Namespace, "signing domain of the paying module")
	fs.StringVar(&scope, "tournament", "", "tournament or escrow scope id")
	fs.StringVar(&recipientStr, "recipient", "", "recipient bech32 address")
	fs.StringVar(&amountStr, "amount", "", "amount in base units")
	fs.Uint64Var(&nonce, "nonce", 0, "sequential payout nonce")
	fs.Int64Var(&deadline, "deadline", 0, "unix deadline, zero defers to the tournament")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if scope == "" {
		return fail(stderr, "--tournament is required")
	}
	recipient, err := crypto.ParsePrincipal(recipientStr)
	if err != nil {
		return fail(stderr, "--recipient: %v", err)
	}
	amount, err := config.ParseAmount(amountStr)
	if err != nil {
		return fail(stderr, "--amount: %v", err)
	}
	key, err := loadKey(keystorePath, keyHex)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	auth := payout.Authorization{Scope: scope, Recipient: recipient, Amount: amount, Nonce: nonce, Deadline: deadline}
	sig, err := payout.Sign(key, domain, auth)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	fmt.Fprintln(stdout, "0x"+hex.EncodeToString(sig))
	return 0
}

func runIssueToken(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("issue-token", stderr)
	secretFile := fs.String("secret-file", "", "file holding the daemon's hmac secret")
	subject := fs.String("subject", "", "principal bech32 address")
	issuer := fs.String("issuer", "", "token issuer")
	audience := fs.String("audience", "", "token audience")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *secretFile == "" {
		return fail(stderr, "--secret-file is required")
	}
	secret, err := os.ReadFile(*secretFile)
	if err != nil {
		return fail(stderr, "read secret: %v", err)
	}
	principal, err := crypto.ParsePrincipal(*subject)
	if err != nil {
		return fail(stderr, "--subject: %v", err)
	}
	token, err := vaultd.IssueToken([]byte(strings.TrimSpace(string(secret))), *issuer, *audience, principal, *ttl)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func runExportAudit(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("export-audit", stderr)
	driver := fs.String("driver", "sqlite", "audit database driver (sqlite or postgres)")
	dsn := fs.String("dsn", "", "audit database dsn")
	out := fs.String("out", "", "parquet file to write")
	after := fs.Uint64("after", 0, "export records with a greater index")
	verify := fs.Bool("verify", true, "verify the hash chain before exporting")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *dsn == "" || *out == "" {
		return fail(stderr, "--dsn and --out are required")
	}
	db, err := audit.Open(*driver, *dsn)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	store, err := audit.New(db)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	if *verify {
		if _, err := store.VerifyChain(); err != nil {
			return fail(stderr, "%v", err)
		}
	}
	written, err := store.ExportParquet(*out, *after)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	fmt.Fprintf(stdout, "exported %d records to %s\n", written, *out)
	return 0
}
