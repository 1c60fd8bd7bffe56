package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sample = `
import React, { useState } from "react";
import type { FC } from 'react';
import * as z from "zod";
import "./styles.css";
import "@fontsource/inter";
import { Button } from "@radix-ui/react-slot/dist/index";
import local from "../lib/local";
export { motion } from "framer-motion";
export * from "./components";
const lodash = require("lodash/fp");
const lazy = await import("date-fns");
import fs from "node:fs";
import remote from "https://esm.sh/preact";
import alias from "~/utils";
`

func TestScan(t *testing.T) {
	got := Scan([]byte(sample))
	assert.Equal(t, []string{
		"@fontsource/inter",
		"@radix-ui/react-slot",
		"date-fns",
		"framer-motion",
		"lodash",
		"react",
		"zod",
	}, got)
}

func TestScan_Empty(t *testing.T) {
	assert.Empty(t, Scan([]byte("export const X = 1;")))
}

func TestPackageName(t *testing.T) {
	tests := []struct {
		spec string
		want string
		ok   bool
	}{
		{"react", "react", true},
		{"react-dom/client", "react-dom", true},
		{"@scope/pkg", "@scope/pkg", true},
		{"@scope/pkg/deep/path", "@scope/pkg", true},
		{"@scope", "", false},
		{"./x", "", false},
		{"../x", "", false},
		{"/abs", "", false},
		{"node:path", "", false},
		{"https://cdn/x.js", "", false},
		{"#internal", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := PackageName(tt.spec)
		assert.Equal(t, tt.ok, ok, tt.spec)
		assert.Equal(t, tt.want, got, tt.spec)
	}
}

func TestIndex(t *testing.T) {
	x := NewIndex()

	assert.True(t, x.Update("a.tsx", []byte(`import React from "react";`)))
	assert.False(t, x.Update("b.tsx", []byte(`import { useState } from "react";`)), "react already known")
	assert.True(t, x.Update("c.ts", []byte(`import z from "zod";`)))
	assert.False(t, x.Update("notes.md", []byte(`import x from "ignored";`)))
	assert.Equal(t, []string{"react", "zod"}, x.Packages())

	assert.False(t, x.Remove("a.tsx"), "b.tsx still imports react")
	assert.True(t, x.Remove("b.tsx"))
	assert.False(t, x.Remove("missing.ts"))
	assert.Equal(t, []string{"zod"}, x.Packages())

	assert.True(t, x.Update("c.ts", []byte(`export const none = 1;`)))
	assert.Empty(t, x.Packages())
	assert.Empty(t, x.Files())
}
