package main

import app "rlbench-env/internal/app"

func main() {
	app.Run()
}
