package mcpserver

// ChapterFormat describes how a chapter source file is laid out, for clients
// that read or quote the Markdown sources.
const ChapterFormat = `# Chapter Format

A chapter is a Markdown file under the source directory. Its identifier is the
path relative to that directory without the ` + "`.md`" + ` extension
(` + "`guide/setup.md`" + ` is ` + "`guide/setup`" + `) and it is published as
` + "`<identifier>.html`" + `.

## Structure

` + "```" + `markdown
---
layout: default        # OPTIONAL - layout name; missing means the default layout
title: Getting Started # OPTIONAL - page title
description: ...       # OPTIONAL - meta description
---

# Getting Started

Body text in Markdown (GitHub flavoured, footnotes, fenced code).
` + "```" + `

## Rules

1. The metadata block is optional. When present, its opening ` + "`---`" + ` is the
   very first line and a closing ` + "`---`" + ` line ends it.
2. The block is a YAML mapping. Keys other than layout, title and description
   are passed to the layout as page parameters.
3. Code blocks are shown, never executed.
4. Reading order is not part of a chapter. It comes from the ` + "`chapters`" + `
   list in the book configuration.
5. ` + "`index.md`" + ` is the book's front page. Its body appears above the
   generated table of contents.
`
