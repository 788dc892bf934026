// SPDX-License-Identifier: MPL-2.0

package main

import cmd "maxbridge/cmd/maxbridge"

func main() {
	cmd.Execute()
}
