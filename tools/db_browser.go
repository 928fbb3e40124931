package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/abcfe/abcfe-keyring/keystore"
	prt "github.com/abcfe/abcfe-keyring/protocol"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run tools/db_browser.go <db_path> [command]")
		fmt.Println("Commands:")
		fmt.Println("  meta     - Show key file metadata (version, created at, KDF)")
		fmt.Println("  keys     - List keyring entries")
		fmt.Println("  all      - Show all entries (sizes only)")
		return
	}

	dbPath := os.Args[1]
	command := "meta"
	if len(os.Args) > 2 {
		command = os.Args[2]
	}

	// 암호문은 출력하지 않음, 읽기 전용으로 연다
	db, err := leveldb.OpenFile(dbPath, &opt.Options{ReadOnly: true, ErrorIfMissing: true})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Database opened: %s\n\n", dbPath)

	switch command {
	case "meta":
		showMetadata(db)
	case "keys":
		listKeys(db)
	case "all":
		showAllData(db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
	}
}

func showMetadata(db *leveldb.DB) {
	fmt.Println("=== KEY FILE ===")

	data, err := db.Get([]byte(prt.PrefixKeyringCrypto), nil)
	if err != nil {
		fmt.Printf("Key file: Not found (%v)\n", err)
		return
	}

	var file keystore.KeyFile
	if err := json.Unmarshal(data, &file); err != nil {
		fmt.Printf("Key file is corrupt: %v\n", err)
		return
	}

	fmt.Printf("Version:    %d\n", file.Version)
	fmt.Printf("Created At: %s\n", time.Unix(file.CreatedAt, 0).UTC().Format(time.RFC3339))
	fmt.Printf("Cipher:     %s\n", file.Crypto.Cipher)
	fmt.Printf("KDF:        %s (n=%d r=%d p=%d dklen=%d)\n",
		file.Crypto.KDF,
		file.Crypto.KDFParams.N,
		file.Crypto.KDFParams.R,
		file.Crypto.KDFParams.P,
		file.Crypto.KDFParams.DkLen)
	fmt.Printf("Ciphertext: %d hex chars\n", len(file.Crypto.CipherText))
	fmt.Println()
}

func listKeys(db *leveldb.DB) {
	fmt.Println("=== KEYRING ENTRIES ===")

	iter := db.NewIterator(util.BytesPrefix([]byte(prt.PrefixKeyring)), nil)
	defer iter.Release()

	count := 0
	for iter.Next() {
		fmt.Printf("%s (%d bytes)\n", string(iter.Key()), len(iter.Value()))
		count++
	}
	if err := iter.Error(); err != nil {
		fmt.Printf("Iterator error: %v\n", err)
	}
	fmt.Printf("Total entries: %d\n\n", count)
}

func showAllData(db *leveldb.DB) {
	fmt.Println("=== ALL DATABASE DATA ===")

	iter := db.NewIterator(nil, nil)
	defer iter.Release()

	count := 0
	for iter.First(); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		kind := "other"
		if strings.HasPrefix(key, prt.PrefixKeyring) {
			kind = "keyring"
		}
		fmt.Printf("[%d] Key: %s (%s)\n", count, key, kind)
		fmt.Printf("     Value Size: %d bytes\n", len(iter.Value()))

		count++
		if count >= 50 { // Show max 50 entries
			fmt.Printf("... (showing first 50 entries)\n")
			break
		}
	}

	fmt.Printf("Total entries: %d\n", count)
}
