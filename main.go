// Command cartcrawler crawls the PICO-8 cart listing.
package main

import "github.com/JakeFAU/cart-crawler/cmd"

func main() {
	cmd.Execute()
}
