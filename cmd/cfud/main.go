// Command cfud serves and displays Cloudflare usage against contracted
// thresholds.
package main

import "os"

func main() {
	os.Exit(int(Run()))
}
