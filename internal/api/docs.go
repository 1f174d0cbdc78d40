package api

import "strings"

const stoplightVersion = "9.0.0"

// docsHTML serves Stoplight Elements over /openapi.json.
var docsHTML = strings.ReplaceAll(`<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>graphview control API</title>
  <link rel="stylesheet" href="https://unpkg.com/@stoplight/elements@{{v}}/styles.min.css" />
  <script src="https://unpkg.com/@stoplight/elements@{{v}}/web-components.min.js" crossorigin="anonymous"></script>
</head>
<body style="height: 100vh; margin: 0">
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    hideExport="true"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`, "{{v}}", stoplightVersion)
