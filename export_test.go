package main

// Root exposes the command dispatch to the tests, which run the program
// in-process to observe its output and exit code.
var Root = root
