// Command genkey prints a fresh artifact encryption key, or derives one
// deterministically from a passphrase and salt.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vigji/mootlib/internal/mootcrypto"
)

func main() {
	passphrase := flag.String("passphrase", "", "derive the key from this passphrase instead of random bytes")
	salt := flag.String("salt", "", "salt for passphrase derivation (required with -passphrase)")
	flag.Parse()

	if *passphrase != "" {
		if *salt == "" {
			fmt.Fprintln(os.Stderr, "genkey: -salt is required with -passphrase")
			os.Exit(2)
		}
		key, err := mootcrypto.DeriveKey(*passphrase, []byte(*salt))
		if err != nil {
			fmt.Fprintf(os.Stderr, "genkey: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)
		return
	}

	key, err := mootcrypto.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "genkey: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(key)
}
